package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Run("nil registry gets a fresh one", func(t *testing.T) {
		m, err := NewMetrics(nil)
		require.NoError(t, err)
		require.NotNil(t, m.Registry())
		assert.NotNil(t, m.Backend)
		assert.NotNil(t, m.ImageCache)
		assert.NotNil(t, m.Gallery)
	})

	t.Run("registering twice on one registry fails", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		_, err := NewMetrics(registry)
		require.NoError(t, err)
		_, err = NewMetrics(registry)
		require.Error(t, err)
	})
}

func TestBackendMetrics(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	m.Backend.IncrementRequests("fetch_page")
	m.Backend.IncrementRequests("fetch_page")
	m.Backend.IncrementErrors("fetch_page", "server")
	m.Backend.ObserveRequestDuration(0.2)
	m.Backend.ObservePageSize(20)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Backend.APIRequests.WithLabelValues("fetch_page")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Backend.APIErrors.WithLabelValues("fetch_page", "server")), 0.001)
}

func TestGalleryMetrics(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	m.Gallery.IncrementReloads()
	m.Gallery.IncrementPageLoads()
	m.Gallery.IncrementStaleDiscards()
	m.Gallery.IncrementDuplicatesSeen()
	m.Gallery.SetRecordsLoaded(37)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Gallery.Reloads), 0.001)
	assert.InDelta(t, 37.0, testutil.ToFloat64(m.Gallery.RecordsLoaded), 0.001)
}

func TestImageCacheMetrics(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	m.ImageCache.IncrementCacheHits()
	m.ImageCache.IncrementCacheMisses()
	m.ImageCache.IncrementImageDownloads()
	m.ImageCache.IncrementDownloadErrors()
	m.ImageCache.ObserveDownloadDuration(0.5)
	m.ImageCache.SetCacheEntries(3)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ImageCache.CacheHits), 0.001)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.ImageCache.CacheEntries), 0.001)
}
