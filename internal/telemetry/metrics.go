// Package telemetry holds the Prometheus collectors and the tracer used by the
// registration pipeline.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "wharf"

// TracerName is the instrumentation scope for spans.
const TracerName = "github.com/aretw0/wharf"

// Tracer returns the tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Metrics groups the pipeline's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Bindings    *prometheus.CounterVec
	Invocations *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	Handshakes  *prometheus.CounterVec
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Bindings: newCounterVec("bootstrap", "bindings_total",
			"Pending registrations processed, by role and outcome.", []string{"role", "outcome"}),
		Invocations: newCounterVec("endpoint", "invocations_total",
			"Handler invocations served, by service, handler and outcome.", []string{"service", "handler", "outcome"}),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "invocation_duration_seconds",
				Help:      "Handler invocation latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "handler"},
		),
		Handshakes: newCounterVec("deployment", "handshakes_total",
			"Deployment registration attempts, by outcome.", []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.Bindings, m.Invocations, m.Latency, m.Handshakes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Binding counts one processed pending registration.
func (m *Metrics) Binding(role, outcome string) {
	if m == nil {
		return
	}
	m.Bindings.WithLabelValues(role, outcome).Inc()
}

// Invocation records one served invocation.
func (m *Metrics) Invocation(service, handler, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(service, handler, outcome).Inc()
	m.Latency.WithLabelValues(service, handler).Observe(elapsed.Seconds())
}

// Handshake counts one deployment registration attempt.
func (m *Metrics) Handshake(outcome string) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(outcome).Inc()
}
