package wharf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/wharf/internal/binder"
	"github.com/aretw0/wharf/internal/bootstrap"
	"github.com/aretw0/wharf/internal/config"
	"github.com/aretw0/wharf/internal/deployment"
	"github.com/aretw0/wharf/internal/endpoint"
	"github.com/aretw0/wharf/internal/logging"
	"github.com/aretw0/wharf/internal/metadata"
	"github.com/aretw0/wharf/internal/telemetry"
	"github.com/aretw0/wharf/pkg/adapters/redis"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/aretw0/wharf/pkg/ingress"
	"github.com/aretw0/wharf/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config is the process configuration.
type Config = config.Config

// Report summarizes one Finalize cycle.
type Report = bootstrap.Report

// Outcome says how a deployment announcement concluded.
type Outcome = deployment.Outcome

// RegistrationState is the deployment's registration state.
type RegistrationState = deployment.State

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.Defaults()
}

// Feature lists classes to register under each role.
type Feature struct {
	Services  []Class
	Objects   []Class
	Workflows []Class
}

// App owns one registration pipeline: the declaration registry, the pending
// queues, the endpoint and the deployment registrar.
type App struct {
	cfg    Config
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	registry   *Registry
	endpoint   *endpoint.Server
	registrar  *deployment.Registrar
	bootstrap  *bootstrap.Bootstrapper
	ingress    *ingress.Client
	httpClient *http.Client

	store      ports.RegistrationStore
	locker     ports.DistributedLocker
	redisStore *redis.Store

	promRegistry *prometheus.Registry
	metrics      *telemetry.Metrics
}

// Option defines a functional option for configuring the App.
type Option func(*App)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithLifecycleHooks registers bootstrap observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *App) {
		a.hooks = hooks
	}
}

// WithRegistrationStore records accepted deployments, overriding any Redis configuration.
func WithRegistrationStore(store ports.RegistrationStore) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithLocker serializes deployment handshakes, overriding any Redis configuration.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *App) {
		a.locker = locker
	}
}

// WithPrometheusRegistry registers metrics on reg instead of a private registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.promRegistry = reg
	}
}

// WithHTTPClient sets the client used for the handshake and the ingress.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// New validates cfg and assembles the pipeline. Nothing listens until Listen
// or Finalize is called.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if a.httpClient == nil {
		a.httpClient = http.DefaultClient
	}

	a.registry = &Registry{inner: metadata.NewRegistry(metadata.WithLogger(a.logger))}

	endpointOpts := []endpoint.Option{
		endpoint.WithLogger(a.logger),
		endpoint.WithMaxRequestBytes(cfg.MaxRequestBytes),
	}
	if cfg.MetricsEnabled {
		if a.promRegistry == nil {
			a.promRegistry = prometheus.NewRegistry()
		}
		m, err := telemetry.NewMetrics(a.promRegistry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		a.metrics = m
		endpointOpts = append(endpointOpts,
			endpoint.WithMetrics(m),
			endpoint.WithMetricsHandler(promhttp.HandlerFor(a.promRegistry, promhttp.HandlerOpts{})),
		)
	}
	a.endpoint = endpoint.New(endpointOpts...)

	if cfg.Redis.Addr != "" {
		a.redisStore = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if a.store == nil {
			a.store = a.redisStore
		}
		if a.locker == nil {
			a.locker = redis.NewLocker(a.redisStore.Client(), cfg.Redis.Prefix)
		}
	}

	registrarOpts := []deployment.Option{
		deployment.WithLogger(a.logger),
		deployment.WithMetrics(a.metrics),
		deployment.WithTimeout(cfg.HandshakeTimeout),
		deployment.WithHTTPClient(a.httpClient),
	}
	if a.store != nil {
		registrarOpts = append(registrarOpts, deployment.WithStore(a.store))
	}
	if a.locker != nil {
		registrarOpts = append(registrarOpts, deployment.WithLocker(a.locker, cfg.HandshakeTimeout))
	}
	a.registrar = deployment.New(cfg.AdminURL, deployment.Advertised{
		Protocol: cfg.AdvertisedProtocol,
		Host:     cfg.AdvertisedHost,
	}, a.endpoint, registrarOpts...)

	bootstrapOpts := []bootstrap.Option{
		bootstrap.WithLogger(a.logger),
		bootstrap.WithMetrics(a.metrics),
		bootstrap.WithHooks(a.hooks),
	}
	if cfg.AutoRegister {
		bootstrapOpts = append(bootstrapOpts, bootstrap.WithAnnouncer(a.registrar))
	}
	a.bootstrap = bootstrap.New(binder.New(a.registry.inner), a.endpoint, bootstrapOpts...)

	if cfg.IngressURL != "" {
		client, err := ingress.Connect(cfg.IngressURL,
			ingress.WithHTTPClient(a.httpClient),
			ingress.WithLogger(a.logger),
		)
		if err != nil {
			return nil, err
		}
		a.ingress = client
	}

	return a, nil
}

// Registry returns the declaration registry.
func (a *App) Registry() *Registry {
	return a.registry
}

// Config returns the configuration the App was built with.
func (a *App) Config() Config {
	return a.cfg
}

// Listen starts the endpoint on the configured port. Calling it again is a no-op.
func (a *App) Listen() error {
	return a.endpoint.EnsureStarted(a.cfg.ListenPort)
}

// ForFeature defers registration of the listed classes until the next Finalize.
func (a *App) ForFeature(f Feature) error {
	var errs []error
	enqueue := func(classes []Class, role Role) {
		for _, c := range classes {
			if err := a.bootstrap.Enqueue(c, role); err != nil {
				errs = append(errs, err)
			}
		}
	}
	enqueue(f.Services, RoleService)
	enqueue(f.Objects, RoleObject)
	enqueue(f.Workflows, RoleWorkflow)
	return errors.Join(errs...)
}

// Finalize is the bootstrap signal. It makes sure the endpoint is listening,
// then binds and attaches every pending registration using instances from
// resolver and announces the deployment. Per-class failures are reported in
// the Report, not returned.
func (a *App) Finalize(ctx context.Context, resolver ports.Resolver) (Report, error) {
	if err := a.Listen(); err != nil {
		return Report{}, err
	}
	return a.bootstrap.Finalize(ctx, resolver), nil
}

// Announce performs the deployment handshake now, regardless of AutoRegister.
// The endpoint is started first so the advertised URI carries its bound port.
func (a *App) Announce(ctx context.Context) (Outcome, error) {
	if err := a.Listen(); err != nil {
		return "", err
	}
	return a.registrar.Announce(ctx)
}

// RegistrationState reports whether the deployment has been registered.
func (a *App) RegistrationState() RegistrationState {
	return a.registrar.State()
}

// DeploymentURI is the URI advertised to the control plane.
func (a *App) DeploymentURI() string {
	return a.registrar.URI()
}

// Ingress returns the ingress client, or nil when no ingress URL is configured.
func (a *App) Ingress() *ingress.Client {
	return a.ingress
}

// Handler returns the endpoint router.
func (a *App) Handler() http.Handler {
	return a.endpoint.Handler()
}

// Port returns the port the endpoint is bound to, or 0 before Listen.
func (a *App) Port() int {
	return a.endpoint.Port()
}

// Errors delivers a fatal endpoint error, if one occurs.
func (a *App) Errors() <-chan error {
	return a.endpoint.Errors()
}

// Shutdown stops the endpoint and releases the Redis connection if one was opened.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.endpoint.Shutdown(ctx)
	if a.redisStore != nil {
		err = errors.Join(err, a.redisStore.Close())
	}
	return err
}

// Instances returns a Resolver that serves the given instances by class.
func Instances(instances ...any) ports.Resolver {
	byClass := make(map[Class]any, len(instances))
	for _, inst := range instances {
		byClass[domain.ClassOfValue(inst)] = inst
	}
	return ports.ResolverFunc(func(_ context.Context, c Class) (any, bool) {
		inst, ok := byClass[c]
		return inst, ok
	})
}
