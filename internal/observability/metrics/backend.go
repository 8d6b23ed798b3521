package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics contains Prometheus metrics for the backend REST client.
type BackendMetrics struct {
	APIRequests     *prometheus.CounterVec
	APIErrors       *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PageSize        prometheus.Histogram
}

// NewBackendMetrics creates and registers metrics for the backend client.
func NewBackendMetrics(registry *prometheus.Registry) (*BackendMetrics, error) {
	m := &BackendMetrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backend_api_requests_total",
			Help: "Total number of backend API requests by operation.",
		}, []string{"operation"}),
		APIErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backend_api_errors_total",
			Help: "Total number of backend API errors by category.",
		}, []string{"operation", "category"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Duration of backend API requests.",
			Buckets: prometheus.DefBuckets,
		}),
		PageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backend_page_rows",
			Help:    "Number of rows returned per fetched page.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}),
	}

	if err := register(registry, m.APIRequests, m.APIErrors, m.RequestDuration, m.PageSize); err != nil {
		return nil, fmt.Errorf("failed to register backend metrics: %w", err)
	}

	return m, nil
}

// IncrementRequests increases the request counter for an operation.
func (m *BackendMetrics) IncrementRequests(operation string) {
	m.APIRequests.WithLabelValues(operation).Inc()
}

// IncrementErrors increases the error counter for an operation and category.
func (m *BackendMetrics) IncrementErrors(operation, category string) {
	m.APIErrors.WithLabelValues(operation, category).Inc()
}

// ObserveRequestDuration records the duration of a request in seconds.
func (m *BackendMetrics) ObserveRequestDuration(seconds float64) {
	m.RequestDuration.Observe(seconds)
}

// ObservePageSize records the row count of a returned page.
func (m *BackendMetrics) ObservePageSize(rows int) {
	m.PageSize.Observe(float64(rows))
}
