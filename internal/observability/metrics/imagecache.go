package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ImageCacheMetrics contains Prometheus metrics for the remote image cache.
type ImageCacheMetrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ImageDownloads   prometheus.Counter
	DownloadErrors   prometheus.Counter
	DownloadDuration prometheus.Histogram
	CacheEntries     prometheus.Gauge
}

// NewImageCacheMetrics creates and registers metrics for the image cache.
func NewImageCacheMetrics(registry *prometheus.Registry) (*ImageCacheMetrics, error) {
	m := &ImageCacheMetrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "image_cache_hits_total",
			Help: "Total number of image cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "image_cache_misses_total",
			Help: "Total number of image cache misses.",
		}),
		ImageDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "image_cache_downloads_total",
			Help: "Total number of image downloads.",
		}),
		DownloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "image_cache_download_errors_total",
			Help: "Total number of image download errors.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "image_cache_download_duration_seconds",
			Help:    "Duration of image downloads.",
			Buckets: prometheus.DefBuckets,
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "image_cache_entries",
			Help: "Current number of entries in the image cache.",
		}),
	}

	if err := register(registry, m.CacheHits, m.CacheMisses, m.ImageDownloads,
		m.DownloadErrors, m.DownloadDuration, m.CacheEntries); err != nil {
		return nil, fmt.Errorf("failed to register image cache metrics: %w", err)
	}

	return m, nil
}

// IncrementCacheHits increases the cache hit counter by one.
func (m *ImageCacheMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increases the cache miss counter by one.
func (m *ImageCacheMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// IncrementImageDownloads increases the download counter by one.
func (m *ImageCacheMetrics) IncrementImageDownloads() {
	m.ImageDownloads.Inc()
}

// IncrementDownloadErrors increases the download error counter by one.
func (m *ImageCacheMetrics) IncrementDownloadErrors() {
	m.DownloadErrors.Inc()
}

// ObserveDownloadDuration records the duration of an image download in seconds.
func (m *ImageCacheMetrics) ObserveDownloadDuration(seconds float64) {
	m.DownloadDuration.Observe(seconds)
}

// SetCacheEntries records the current entry count of the cache.
func (m *ImageCacheMetrics) SetCacheEntries(count int) {
	m.CacheEntries.Set(float64(count))
}
