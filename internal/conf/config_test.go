package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a YAML config into a temp dir and returns its path.
func writeConfig(tb testing.TB, content string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "config.yaml")
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Point at an empty config file so a stray config in the working
	// directory cannot leak into the test
	path := writeConfig(t, "")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.False(t, settings.Debug)
	assert.Equal(t, "galleria", settings.Main.Name)
	assert.Equal(t, 30*time.Second, settings.Backend.Timeout)
	assert.InDelta(t, 10.0, settings.Backend.RequestsPerSecond, 0.001)
	assert.Equal(t, 20, settings.Backend.PageSize)
	assert.Equal(t, 20, settings.Gallery.PageSize)
	assert.Equal(t, 3, settings.Gallery.PrefetchThreshold)
	assert.Equal(t, 30*time.Minute, settings.ImageCache.TTL)
	assert.Equal(t, int64(20*1024*1024), settings.ImageCache.MaxBytes)
	assert.Equal(t, 256, settings.ImageCache.ThumbnailSize)
	assert.False(t, settings.Telemetry.Enabled)
	assert.Equal(t, "localhost:8090", settings.Telemetry.Listen)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
debug: true
backend:
  url: https://api.example.test/rest/v1
  apikey: file-key
  timeout: 10s
  pagesize: 5
gallery:
  pagesize: 5
  prefetchthreshold: 2
imagecache:
  ttl: 5m
telemetry:
  enabled: true
  listen: localhost:9999
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.True(t, settings.Debug)
	assert.Equal(t, "https://api.example.test/rest/v1", settings.Backend.URL)
	assert.Equal(t, "file-key", settings.Backend.APIKey)
	assert.Equal(t, 10*time.Second, settings.Backend.Timeout)
	assert.Equal(t, 5, settings.Backend.PageSize)
	assert.Equal(t, 2, settings.Gallery.PrefetchThreshold)
	assert.Equal(t, 5*time.Minute, settings.ImageCache.TTL)
	assert.True(t, settings.Telemetry.Enabled)
	assert.Equal(t, "localhost:9999", settings.Telemetry.Listen)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GALLERIA_BACKEND_APIKEY", "env-key")
	t.Setenv("GALLERIA_BACKEND_URL", "https://env.example.test")

	path := writeConfig(t, "")
	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", settings.Backend.APIKey)
	assert.Equal(t, "https://env.example.test", settings.Backend.URL)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "malformed backend URL",
			content: `
backend:
  url: "not a url"
`,
		},
		{
			name: "unsupported URL scheme",
			content: `
backend:
  url: "ftp://api.example.test"
`,
		},
		{
			name: "non-positive page size",
			content: `
backend:
  pagesize: 0
`,
		},
		{
			name: "zero prefetch threshold",
			content: `
gallery:
  prefetchthreshold: 0
`,
		},
		{
			name: "non-positive cache TTL",
			content: `
imagecache:
  ttl: 0s
`,
		},
		{
			name: "unknown rotation strategy",
			content: `
main:
  log:
    rotation: hourly
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	original := &Settings{
		Debug: true,
		Main:  MainSettings{Name: "roundtrip"},
		Backend: BackendSettings{
			URL:               "https://api.example.test/rest/v1",
			APIKey:            "key",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			PageSize:          10,
		},
		Gallery:    GallerySettings{PageSize: 10, PrefetchThreshold: 2},
		ImageCache: ImageCacheSettings{TTL: 5 * time.Minute, MaxBytes: 1024, ThumbnailSize: 64},
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(original, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "roundtrip")
	assert.Contains(t, string(data), "https://api.example.test/rest/v1")
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Backend: BackendSettings{
				URL:               "https://api.example.test",
				Timeout:           time.Second,
				RequestsPerSecond: 1,
				PageSize:          1,
			},
			Gallery:    GallerySettings{PageSize: 1, PrefetchThreshold: 1},
			ImageCache: ImageCacheSettings{TTL: time.Second, MaxBytes: 1, ThumbnailSize: 1},
		}
	}

	t.Run("valid settings pass", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("empty backend URL passes, presence is checked at client construction", func(t *testing.T) {
		s := valid()
		s.Backend.URL = ""
		require.NoError(t, s.Validate())
	})

	t.Run("multiple problems are reported together", func(t *testing.T) {
		s := valid()
		s.Backend.Timeout = 0
		s.Gallery.PageSize = 0
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend.timeout")
		assert.Contains(t, err.Error(), "gallery.pagesize")
	})

	t.Run("non-positive prefetch threshold fails", func(t *testing.T) {
		// Zero must be rejected here: the controller treats a zero
		// threshold as unset and substitutes its default, so letting it
		// through would silently change the configured behavior
		s := valid()
		s.Gallery.PrefetchThreshold = 0
		require.Error(t, s.Validate())

		s = valid()
		s.Gallery.PrefetchThreshold = -1
		require.Error(t, s.Validate())
	})
}
