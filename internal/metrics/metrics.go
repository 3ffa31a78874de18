// Package metrics exposes the Prometheus counters and histogram that
// internal/klap and internal/xortransport report against. A nil
// *Metrics is valid and turns every recording call into a no-op, so
// library consumers who don't want Prometheus wiring aren't forced
// into it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histogram recorded by the transports.
type Metrics struct {
	Handshakes      *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	Retries         prometheus.Counter
	RequestDuration prometheus.Histogram
}

// New registers a fresh Metrics set against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to publish on the default /metrics
// endpoint.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klap",
			Name:      "handshakes_total",
			Help:      "KLAP handshake attempts by outcome.",
		}, []string{"outcome"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klap",
			Name:      "requests_total",
			Help:      "Transport requests sent by transport kind and outcome.",
		}, []string{"transport", "outcome"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klap",
			Name:      "xor_retries_total",
			Help:      "Legacy XOR transport retry attempts.",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "klap",
			Name:      "request_duration_seconds",
			Help:      "Round-trip latency of a single Send call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Handshakes, m.Requests, m.Retries, m.RequestDuration)
	return m
}

func (m *Metrics) ObserveHandshake(outcome string) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(transportKind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(transportKind, outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}
