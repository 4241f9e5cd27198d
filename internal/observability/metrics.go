// Package observability holds the Prometheus metrics exported on /metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "llmarena"

// Outcome label values for provider calls
const (
	OutcomeSuccess      = "success"
	OutcomeError        = "error"
	OutcomeRejected     = "rejected"
	OutcomeCancelled    = "cancelled"
	OutcomeClaimed      = "claimed"
	OutcomeClaimMissing = "not_found"
)

// Metrics groups every collector the server exports.
// Build one with NewMetrics and pass it to the components that record.
type Metrics struct {
	registry *prometheus.Registry

	// ProviderCalls counts provider calls. Labels: provider, mode (call, stream), outcome
	ProviderCalls *prometheus.CounterVec

	// ProviderLatency observes provider call duration in seconds. Labels: provider, mode
	ProviderLatency *prometheus.HistogramVec

	// BreakerState is 0 for CLOSED, 1 for HALF_OPEN, 2 for OPEN. Labels: provider
	BreakerState *prometheus.GaugeVec

	// BreakerTransitions counts state changes. Labels: provider, from, to
	BreakerTransitions *prometheus.CounterVec

	// ActiveSSESessions tracks open SSE connections
	ActiveSSESessions prometheus.Gauge

	// StreamEvents counts SSE events written. Labels: event
	StreamEvents *prometheus.CounterVec

	// ClaimOutcomes counts stream claim attempts. Labels: outcome (claimed, not_found)
	ClaimOutcomes *prometheus.CounterVec

	// TokensTotal counts tokens by model and direction (input, output, reasoning)
	TokensTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
// Separate registries keep tests independent of each other.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Provider calls by outcome",
		}, []string{"provider", "mode", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Provider call duration",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"provider", "mode"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=CLOSED, 1=HALF_OPEN, 2=OPEN)",
		}, []string{"provider"}),
		BreakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"provider", "from", "to"}),
		ActiveSSESessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "sse",
			Name:      "active_sessions",
			Help:      "Open SSE connections",
		}),
		StreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sse",
			Name:      "events_total",
			Help:      "SSE events written by event name",
		}, []string{"event"}),
		ClaimOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "claims_total",
			Help:      "Stream session claim attempts by outcome",
		}, []string{"outcome"}),
		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "tokens_total",
			Help:      "Tokens consumed by model and direction",
		}, []string{"model", "direction"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (used by tests to gather values)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BreakerStateValue maps a breaker state name onto the gauge encoding
func BreakerStateValue(state string) float64 {
	switch state {
	case "OPEN":
		return 2
	case "HALF_OPEN":
		return 1
	default:
		return 0
	}
}
