// Package bootstrap defers binding until instances exist. Classes are queued
// per role during declaration and bound, attached and announced when Finalize
// is called.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/wharf/internal/binder"
	"github.com/aretw0/wharf/internal/deployment"
	"github.com/aretw0/wharf/internal/logging"
	"github.com/aretw0/wharf/internal/telemetry"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/aretw0/wharf/pkg/ports"
)

// Attacher receives bound definitions.
type Attacher interface {
	Attach(def *domain.Definition) error
}

// Announcer registers the deployment once definitions are attached.
type Announcer interface {
	Announce(ctx context.Context) (deployment.Outcome, error)
	URI() string
}

// Failure is a pending registration that could not be bound or attached.
type Failure struct {
	Class domain.Class
	Role  domain.Role
	Err   error
}

// Report summarizes one Finalize cycle.
type Report struct {
	Attached    []string
	Unresolved  []string
	Failed      []Failure
	Announced   deployment.Outcome
	AnnounceErr error
}

// Bootstrapper owns the per-role queues and runs drain cycles.
type Bootstrapper struct {
	mu     sync.Mutex
	queues map[domain.Role]*queue

	// held for a whole drain cycle
	cycleMu sync.Mutex

	binder    *binder.Binder
	attacher  Attacher
	announcer Announcer
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

type Option func(*Bootstrapper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bootstrapper) {
		b.logger = logger
	}
}

// WithMetrics counts binding outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Bootstrapper) {
		b.metrics = m
	}
}

// WithAnnouncer announces the deployment after a cycle attaches anything.
func WithAnnouncer(a Announcer) Option {
	return func(b *Bootstrapper) {
		b.announcer = a
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bootstrapper) {
		b.hooks = hooks
	}
}

// New creates a Bootstrapper with empty queues.
func New(bd *binder.Binder, attacher Attacher, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		queues:   make(map[domain.Role]*queue, len(domain.Roles)),
		binder:   bd,
		attacher: attacher,
		logger:   logging.NewNop(),
	}
	for _, role := range domain.Roles {
		b.queues[role] = &queue{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue defers binding class under role until the next Finalize.
func (b *Bootstrapper) Enqueue(class domain.Class, role domain.Role) error {
	if class.IsZero() {
		return fmt.Errorf("cannot enqueue nil class")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[role]
	if !ok {
		return fmt.Errorf("unknown role: %q", role)
	}
	q.push(Pending{Class: class, Role: role})
	b.logger.Debug("Registration deferred", "class", class.String(), "role", role)
	return nil
}

// Pending returns the registrations waiting for the next cycle.
func (b *Bootstrapper) Pending(role domain.Role) []Pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[role]
	if !ok {
		return nil
	}
	return append([]Pending(nil), q.items...)
}

// QueueState returns the lifecycle state of role's queue.
func (b *Bootstrapper) QueueState(role domain.Role) QueueState {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[role]
	if !ok {
		return QueueEmpty
	}
	return q.state()
}

func (b *Bootstrapper) take(role domain.Role) []Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queues[role].take()
}

func (b *Bootstrapper) finish(role domain.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[role].finish()
}

// Finalize drains the service, object and workflow queues in that order,
// resolving, binding and attaching each pending registration. A registration
// that fails is logged and skipped without affecting the others. If anything
// was attached, the deployment is announced; announcement failures are logged
// and reported, never returned.
func (b *Bootstrapper) Finalize(ctx context.Context, resolver ports.Resolver) Report {
	b.cycleMu.Lock()
	defer b.cycleMu.Unlock()

	var report Report
	for _, role := range domain.Roles {
		for _, p := range b.take(role) {
			b.process(ctx, resolver, p, &report)
		}
		b.finish(role)
	}

	if len(report.Attached) > 0 && b.announcer != nil {
		report.Announced, report.AnnounceErr = b.announcer.Announce(ctx)
		if report.AnnounceErr != nil {
			b.logger.Error("Deployment announcement failed; will retry on next bootstrap", "error", report.AnnounceErr)
		}
		if b.hooks.OnAnnounced != nil && report.Announced != deployment.OutcomeSkipped {
			b.hooks.OnAnnounced(ctx, &domain.AnnounceEvent{
				EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventAnnounced},
				URI:        b.announcer.URI(),
				Registered: report.AnnounceErr == nil,
				Err:        report.AnnounceErr,
			})
		}
	}

	b.logger.Info("Bootstrap cycle complete",
		"attached", len(report.Attached),
		"unresolved", len(report.Unresolved),
		"failed", len(report.Failed),
	)
	return report
}

func (b *Bootstrapper) process(ctx context.Context, resolver ports.Resolver, p Pending, report *Report) {
	logger := b.logger.With("class", p.Class.String(), "role", p.Role)
	event := &domain.BindingEvent{
		EventBase: domain.EventBase{Timestamp: time.Now()},
		Class:     p.Class.String(),
		Role:      p.Role,
	}

	var instance any
	ok := false
	if resolver != nil {
		instance, ok = resolver.Resolve(ctx, p.Class)
	}
	if !ok || instance == nil {
		logger.Warn("No instance available, skipping registration")
		b.metrics.Binding(string(p.Role), "unresolved")
		report.Unresolved = append(report.Unresolved, p.Class.String())
		event.Type = domain.EventUnresolved
		if b.hooks.OnUnresolved != nil {
			b.hooks.OnUnresolved(ctx, event)
		}
		return
	}

	def, err := b.binder.Bind(instance, p.Role)
	if err == nil {
		event.Name = def.Name
		err = b.attacher.Attach(def)
	}
	if err != nil {
		logger.Error("Registration failed", "error", err)
		b.metrics.Binding(string(p.Role), "failed")
		report.Failed = append(report.Failed, Failure{Class: p.Class, Role: p.Role, Err: err})
		event.Type = domain.EventBindFailed
		event.Err = err
		if b.hooks.OnBindFailed != nil {
			b.hooks.OnBindFailed(ctx, event)
		}
		return
	}

	b.metrics.Binding(string(p.Role), "attached")
	report.Attached = append(report.Attached, def.Name)
	event.Type = domain.EventAttached
	if b.hooks.OnAttached != nil {
		b.hooks.OnAttached(ctx, event)
	}
}
