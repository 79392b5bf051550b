// Package deployment announces the endpoint to the control plane's admin API.
package deployment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/wharf/internal/jsoncodec"
	"github.com/aretw0/wharf/internal/logging"
	"github.com/aretw0/wharf/internal/telemetry"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/aretw0/wharf/pkg/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single handshake.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 64 << 10

// ErrNoAdminURL is returned by Announce when no admin URL is configured.
var ErrNoAdminURL = errors.New("admin URL is not configured")

// ErrEndpointNotListening is returned by Announce before the endpoint has a bound port.
var ErrEndpointNotListening = errors.New("endpoint is not listening")

// State is the registration state of this process's deployment.
type State int

const (
	Unregistered State = iota
	Registered
)

func (s State) String() string {
	if s == Registered {
		return "registered"
	}
	return "unregistered"
}

// Outcome says how a successful Announce concluded.
type Outcome string

const (
	// OutcomeRegistered means the control plane accepted the deployment.
	OutcomeRegistered Outcome = "registered"
	// OutcomeAlreadyRegistered means the control plane answered 409.
	OutcomeAlreadyRegistered Outcome = "already_registered"
	// OutcomeRecorded means the registration store already held this URI.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeSkipped means this registrar had already registered.
	OutcomeSkipped Outcome = "skipped"
)

// HandshakeError is a non-success, non-conflict answer from the admin API.
type HandshakeError struct {
	Status int
	Body   string
}

func (e *HandshakeError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("deployment registration rejected: status %d", e.Status)
	}
	return fmt.Sprintf("deployment registration rejected: status %d: %s", e.Status, e.Body)
}

// PortSource reports the port the endpoint is bound to.
type PortSource interface {
	Port() int
}

// Advertised is how the control plane should reach this process.
type Advertised struct {
	Protocol string
	Host     string
}

type registrationRequest struct {
	URI string `json:"uri"`
}

type registrationResponse struct {
	ID       string `json:"id"`
	Services []struct {
		Name string `json:"name"`
	} `json:"services"`
}

// Registrar performs the deployment handshake until it succeeds once.
type Registrar struct {
	mu    sync.Mutex
	state State

	adminURL   string
	advertised Advertised
	endpoint   PortSource

	client  *http.Client
	timeout time.Duration
	store   ports.RegistrationStore
	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

type Option func(*Registrar)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		r.logger = logger
	}
}

// WithMetrics counts handshake outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registrar) {
		r.metrics = m
	}
}

// WithHTTPClient replaces the HTTP client used for the handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registrar) {
		r.client = c
	}
}

// WithTimeout bounds a single handshake. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Registrar) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithStore records accepted registrations and consults them before a handshake.
func WithStore(store ports.RegistrationStore) Option {
	return func(r *Registrar) {
		r.store = store
	}
}

// WithLocker serializes handshakes for the same URI across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(r *Registrar) {
		r.locker = locker
		r.lockTTL = ttl
	}
}

// New creates a Registrar in the Unregistered state.
func New(adminURL string, advertised Advertised, endpoint PortSource, opts ...Option) *Registrar {
	r := &Registrar{
		adminURL:   strings.TrimRight(adminURL, "/"),
		advertised: advertised,
		endpoint:   endpoint,
		client:     http.DefaultClient,
		timeout:    DefaultTimeout,
		lockTTL:    DefaultTimeout,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current registration state.
func (r *Registrar) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// URI is the address advertised to the control plane.
func (r *Registrar) URI() string {
	return fmt.Sprintf("%s://%s:%d", r.advertised.Protocol, r.advertised.Host, r.endpoint.Port())
}

// Announce registers the deployment unless it already is. A 409 from the admin
// API counts as success. Any other failure leaves the state Unregistered so the
// next call tries again.
func (r *Registrar) Announce(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Registered {
		return OutcomeSkipped, nil
	}
	if r.adminURL == "" {
		return "", ErrNoAdminURL
	}
	if r.endpoint.Port() == 0 {
		return "", ErrEndpointNotListening
	}

	uri := r.URI()
	logger := r.logger.With("uri", uri)

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, uri, r.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to lock deployment %s: %w", uri, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Failed to release deployment lock", "error", err)
			}
		}()
	}

	if r.store != nil {
		reg, err := r.store.Load(ctx, uri)
		switch {
		case err == nil:
			r.state = Registered
			r.metrics.Handshake(string(OutcomeRecorded))
			logger.Info("Deployment already recorded", "deployment_id", reg.DeploymentID)
			return OutcomeRecorded, nil
		case !errors.Is(err, domain.ErrNotRegistered):
			logger.Warn("Registration store unavailable", "error", err)
		}
	}

	outcome, id, err := r.handshake(ctx, uri)
	if err != nil {
		r.metrics.Handshake("failed")
		logger.Error("Deployment registration failed", "error", err)
		return "", err
	}

	r.state = Registered
	r.metrics.Handshake(string(outcome))
	logger.Info("Deployment registered", "outcome", outcome, "deployment_id", id)

	if r.store != nil {
		reg := domain.Registration{URI: uri, DeploymentID: id, RegisteredAt: time.Now().UTC()}
		if err := r.store.Save(ctx, reg); err != nil {
			logger.Warn("Failed to record registration", "error", err)
		}
	}
	return outcome, nil
}

func (r *Registrar) handshake(ctx context.Context, uri string) (Outcome, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "RegisterDeployment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("wharf.deployment_uri", uri)),
	)
	defer span.End()

	body, err := jsoncodec.Marshal(registrationRequest{URI: uri})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.adminURL+"/deployments", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return "", "", fmt.Errorf("deployment registration request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		r.logger.Debug("Failed to read registration response", "error", err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		var decoded registrationResponse
		if len(data) > 0 {
			if err := jsoncodec.Unmarshal(data, &decoded); err != nil {
				r.logger.Debug("Unrecognized registration response", "error", err)
			}
		}
		for _, svc := range decoded.Services {
			r.logger.Debug("Service discovered by control plane", "service", svc.Name)
		}
		return OutcomeRegistered, decoded.ID, nil
	case resp.StatusCode == http.StatusConflict:
		return OutcomeAlreadyRegistered, "", nil
	default:
		err := &HandshakeError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		span.SetStatus(codes.Error, err.Error())
		return "", "", err
	}
}
