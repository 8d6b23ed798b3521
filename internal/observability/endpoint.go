// Package observability wires the metrics registry to an optional HTTP
// endpoint for Prometheus scraping.
package observability

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Endpoint serves /metrics for a Prometheus registry.
type Endpoint struct {
	server *http.Server
	logger *slog.Logger
}

// StartEndpoint starts serving the registry on the given listen address in a
// background goroutine. The caller owns shutdown via Stop.
func StartEndpoint(listen string, registry *prometheus.Registry, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Telemetry endpoint listening", "listen", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Telemetry endpoint failed", "error", err)
		}
	}()

	return &Endpoint{server: server, logger: logger}
}

// Stop shuts the endpoint down, waiting up to five seconds for in-flight
// scrapes.
func (e *Endpoint) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Warn("Telemetry endpoint shutdown error", "error", err)
	}
}
