// Package endpoint serves bound definitions over HTTP on a single listener.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/wharf/internal/logging"
	"github.com/aretw0/wharf/internal/telemetry"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultPort is the listen port used when none is configured.
const DefaultPort = 9080

const defaultMaxRequestBytes = 4 << 20

type state int

const (
	stateIdle state = iota
	stateServing
	stateStopped
)

// Server holds the attached definitions and the one listener serving them.
type Server struct {
	mu   sync.RWMutex
	defs map[string]*domain.Definition

	startMu sync.Mutex
	state   state
	port    int
	srv     *http.Server
	errs    chan error

	router          chi.Router
	logger          *slog.Logger
	metrics         *telemetry.Metrics
	metricsHandler  http.Handler
	maxRequestBytes int64
}

type Option func(*Server)

// WithLogger sets the logger for request and invocation logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records invocation counts and latency.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithMaxRequestBytes bounds invocation payload size.
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRequestBytes = n
		}
	}
}

// New creates an endpoint that is not yet listening.
func New(opts ...Option) *Server {
	s := &Server{
		defs:            make(map[string]*domain.Definition),
		errs:            make(chan error, 1),
		logger:          logging.NewNop(),
		maxRequestBytes: defaultMaxRequestBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/health", s.health)
	r.Get("/discover", s.discover)
	r.Post("/invoke/{service}/{handler}", s.invoke)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	return r
}

// Attach adds a definition. It may be called before or after the listener starts.
func (s *Server) Attach(def *domain.Definition) error {
	if def == nil {
		return errors.New("nil definition")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateDefinition, def.Name)
	}
	s.defs[def.Name] = def
	s.logger.Info("Definition attached", "name", def.Name, "role", def.Role, "handlers", def.HandlerNames())
	return nil
}

func (s *Server) lookup(name string) (*domain.Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[name]
	return def, ok
}

// Definitions returns the attached definitions sorted by name.
func (s *Server) Definitions() []*domain.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Definition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EnsureStarted starts listening on port the first time it is called. Later
// calls with the same port, or port 0, do nothing; a different port fails with
// domain.ErrPortMismatch. Port 0 on the first call picks a free port.
func (s *Server) EnsureStarted(port int) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	switch s.state {
	case stateServing:
		if port == 0 || port == s.port {
			return nil
		}
		return fmt.Errorf("%w: serving on %d, requested %d", domain.ErrPortMismatch, s.port, port)
	case stateStopped:
		return domain.ErrEndpointStopped
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	s.port = ln.Addr().(*net.TCPAddr).Port
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.state = stateServing

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Endpoint stopped serving", "error", err)
			s.errs <- err
		}
	}()

	s.logger.Info("Endpoint listening", "port", s.port)
	return nil
}

// Started reports whether the listener is running.
func (s *Server) Started() bool {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.state == stateServing
}

// Port returns the bound port, or 0 before start.
func (s *Server) Port() int {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.port
}

// Errors delivers a fatal serve error, if one occurs.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Handler returns the router, for embedding or testing without a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown stops the listener, waiting for in-flight invocations until ctx is done.
// The endpoint cannot be restarted afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	prev := s.state
	s.state = stateStopped
	if prev != stateServing {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("Graceful shutdown did not complete", "error", err)
		return s.srv.Close()
	}
	s.logger.Info("Endpoint stopped")
	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
