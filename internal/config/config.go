// Package config provides configuration types, defaults, validation and
// loading for wharf.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/wharf/internal/logging"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. WHARF_ADMIN_URL.
const EnvPrefix = "WHARF"

// Config is the process configuration.
type Config struct {
	// ListenPort is where the endpoint listens. 0 picks a free port.
	ListenPort         int           `mapstructure:"listen_port" yaml:"listen_port"`
	AdvertisedProtocol string        `mapstructure:"advertised_protocol" yaml:"advertised_protocol"`
	AdvertisedHost     string        `mapstructure:"advertised_host" yaml:"advertised_host"`
	AdminURL           string        `mapstructure:"admin_url" yaml:"admin_url"`
	IngressURL         string        `mapstructure:"ingress_url" yaml:"ingress_url"`
	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	// AutoRegister announces the deployment after each bootstrap that attaches definitions.
	AutoRegister    bool        `mapstructure:"auto_register" yaml:"auto_register"`
	LogLevel        string      `mapstructure:"log_level" yaml:"log_level"`
	MetricsEnabled  bool        `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	MaxRequestBytes int64       `mapstructure:"max_request_bytes" yaml:"max_request_bytes"`
	Redis           RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig enables shared registration records and handshake locking when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		ListenPort:         9080,
		AdvertisedProtocol: "http",
		AdvertisedHost:     "localhost",
		AdminURL:           "http://localhost:9070",
		IngressURL:         "http://localhost:8080",
		HandshakeTimeout:   10 * time.Second,
		AutoRegister:       true,
		LogLevel:           "info",
		MetricsEnabled:     true,
		MaxRequestBytes:    4 << 20,
		Redis: RedisConfig{
			Prefix: "wharf:deployment:",
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateEndpoint()...)
	errs = append(errs, c.validateControlPlane()...)
	errs = append(errs, c.validateRedis()...)

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) validateEndpoint() []error {
	var errs []error
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port out of range: %d", c.ListenPort))
	}
	switch c.AdvertisedProtocol {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("advertised_protocol must be http or https, got %q", c.AdvertisedProtocol))
	}
	if strings.TrimSpace(c.AdvertisedHost) == "" {
		errs = append(errs, errors.New("advertised_host is required"))
	}
	if c.MaxRequestBytes <= 0 {
		errs = append(errs, errors.New("max_request_bytes must be positive"))
	}
	return errs
}

func (c *Config) validateControlPlane() []error {
	var errs []error
	if c.AutoRegister && c.AdminURL == "" {
		errs = append(errs, errors.New("admin_url is required when auto_register is enabled"))
	}
	for _, f := range []struct{ name, raw string }{
		{"admin_url", c.AdminURL},
		{"ingress_url", c.IngressURL},
	} {
		name, raw := f.name, f.raw
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not an absolute URL: %q", name, raw))
		}
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("handshake_timeout must be positive"))
	}
	return errs
}

func (c *Config) validateRedis() []error {
	var errs []error
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative: %d", c.Redis.DB))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis.ttl must not be negative"))
	}
	return errs
}

// SetDefaults registers every default on v so env overrides apply to all keys.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("listen_port", d.ListenPort)
	v.SetDefault("advertised_protocol", d.AdvertisedProtocol)
	v.SetDefault("advertised_host", d.AdvertisedHost)
	v.SetDefault("admin_url", d.AdminURL)
	v.SetDefault("ingress_url", d.IngressURL)
	v.SetDefault("handshake_timeout", d.HandshakeTimeout)
	v.SetDefault("auto_register", d.AutoRegister)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("metrics_enabled", d.MetricsEnabled)
	v.SetDefault("max_request_bytes", d.MaxRequestBytes)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("redis.ttl", d.Redis.TTL)
}

// Load reads configuration from v: defaults, then the config file if one is
// set, then WHARF_* environment variables. The result is validated.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration as YAML, creating parent directories.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := "# wharf configuration. Every key can be overridden with WHARF_<KEY>, e.g. WHARF_ADMIN_URL.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
