package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/wharf/internal/config"
	"github.com/aretw0/wharf/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"port":          "listen_port",
	"admin-url":     "admin_url",
	"auto-register": "auto_register",
}

var rootCmd = &cobra.Command{
	Use:   "wharf",
	Short: "Wharf registers durable handlers with a durable-execution runtime",
	Long: `Wharf serves declared services, objects and workflows on a single endpoint
and announces that endpoint to the control plane's admin API.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: none, env WHARF_* only)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

// loadConfig resolves the configuration for cmd from defaults, the config
// file, WHARF_* variables and the flags cmd defines, and returns a logger at
// the configured level.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, nil, err
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level), nil
}
