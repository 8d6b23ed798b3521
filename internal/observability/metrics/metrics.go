// Package metrics provides Prometheus metrics for the galleria components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the per-component metric sets behind one registry.
type Metrics struct {
	Backend    *BackendMetrics
	ImageCache *ImageCacheMetrics
	Gallery    *GalleryMetrics

	registry *prometheus.Registry
}

// NewMetrics creates and registers all component metrics on the given
// registry. A nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	backend, err := NewBackendMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend metrics: %w", err)
	}

	imageCache, err := NewImageCacheMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache metrics: %w", err)
	}

	gallery, err := NewGalleryMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create gallery metrics: %w", err)
	}

	return &Metrics{
		Backend:    backend,
		ImageCache: imageCache,
		Gallery:    gallery,
		registry:   registry,
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// register registers collectors on the registry, unwinding nothing on
// failure since callers abandon the whole registry in that case.
func register(registry *prometheus.Registry, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
