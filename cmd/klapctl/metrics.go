package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhishek/klap/internal/metrics"
)

// startMetrics registers a fresh metrics set and, if addr is non-empty,
// serves it on addr via promhttp in the background. It returns the
// metrics set (possibly unserved) so callers can always wire it into a
// transport.
func startMetrics(addr string) *metrics.Metrics {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if addr == "" {
		return m
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Default().Error("metrics server stopped", "error", err)
		}
	}()

	return m
}
