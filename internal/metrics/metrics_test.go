package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserveHandshakeIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHandshake("success")
	m.ObserveHandshake("success")
	m.ObserveHandshake("failure")

	require.Equal(t, float64(2), counterValue(t, m.Handshakes.WithLabelValues("success")))
	require.Equal(t, float64(1), counterValue(t, m.Handshakes.WithLabelValues("failure")))
}

func TestObserveRequestRecordsOutcomeAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("klap", "success", 10*time.Millisecond)

	require.Equal(t, float64(1), counterValue(t, m.Requests.WithLabelValues("klap", "success")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveHandshake("success")
		m.ObserveRequest("klap", "success", time.Second)
		m.ObserveRetry()
	})
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}
