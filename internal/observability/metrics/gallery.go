package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// GalleryMetrics contains Prometheus metrics for the gallery state controller.
type GalleryMetrics struct {
	Reloads        prometheus.Counter
	PageLoads      prometheus.Counter
	LoadErrors     prometheus.Counter
	StaleDiscards  prometheus.Counter
	RecordsLoaded  prometheus.Gauge
	DuplicatesSeen prometheus.Counter
}

// NewGalleryMetrics creates and registers metrics for the gallery controller.
func NewGalleryMetrics(registry *prometheus.Registry) (*GalleryMetrics, error) {
	m := &GalleryMetrics{
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_reloads_total",
			Help: "Total number of full gallery reloads.",
		}),
		PageLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_page_loads_total",
			Help: "Total number of incremental page loads.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_load_errors_total",
			Help: "Total number of failed gallery fetches.",
		}),
		StaleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_stale_discards_total",
			Help: "Total number of fetch results discarded for a stale generation.",
		}),
		RecordsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gallery_records_loaded",
			Help: "Current number of records held by the controller.",
		}),
		DuplicatesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gallery_duplicate_rows_total",
			Help: "Total number of rows skipped because their id was already present.",
		}),
	}

	if err := register(registry, m.Reloads, m.PageLoads, m.LoadErrors,
		m.StaleDiscards, m.RecordsLoaded, m.DuplicatesSeen); err != nil {
		return nil, fmt.Errorf("failed to register gallery metrics: %w", err)
	}

	return m, nil
}

// IncrementReloads increases the reload counter by one.
func (m *GalleryMetrics) IncrementReloads() {
	m.Reloads.Inc()
}

// IncrementPageLoads increases the page load counter by one.
func (m *GalleryMetrics) IncrementPageLoads() {
	m.PageLoads.Inc()
}

// IncrementLoadErrors increases the load error counter by one.
func (m *GalleryMetrics) IncrementLoadErrors() {
	m.LoadErrors.Inc()
}

// IncrementStaleDiscards increases the stale discard counter by one.
func (m *GalleryMetrics) IncrementStaleDiscards() {
	m.StaleDiscards.Inc()
}

// SetRecordsLoaded records the current record count.
func (m *GalleryMetrics) SetRecordsLoaded(count int) {
	m.RecordsLoaded.Set(float64(count))
}

// IncrementDuplicatesSeen increases the duplicate row counter by one.
func (m *GalleryMetrics) IncrementDuplicatesSeen() {
	m.DuplicatesSeen.Inc()
}
