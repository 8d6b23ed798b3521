package imagecache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvirtanen/galleria/internal/errors"
)

// encodePNG renders a solid-color PNG of the given dimensions.
func encodePNG(tb testing.TB, width, height int) []byte {
	tb.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 0x20, G: 0x70, B: 0xC0, A: 0xFF})
		}
	}

	var buf bytes.Buffer
	require.NoError(tb, png.Encode(&buf, img))
	return buf.Bytes()
}

// imageServer serves the same PNG for every request and counts downloads.
type imageServer struct {
	*httptest.Server
	requests atomic.Int64
}

func newImageServer(tb testing.TB, body []byte, delay time.Duration) *imageServer {
	tb.Helper()

	srv := &imageServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.requests.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	tb.Cleanup(srv.Close)
	return srv
}

func newTestCache(tb testing.TB, config Config) *Cache {
	tb.Helper()
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 1000 // fast for tests
	}
	return New(config, nil, nil, nil)
}

func TestResolveDecodesImage(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 64, 48), 0)
	cache := newTestCache(t, Config{})

	img, err := cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.NoError(t, err)

	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 48, img.Height)
	assert.NotEmpty(t, img.Data)
	assert.Equal(t, srv.URL+"/photos/1.png", img.URL)
	assert.Equal(t, 1, cache.ItemCount())
}

func TestResolveDownloadsOnce(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 8, 8), 0)
	cache := newTestCache(t, Config{})

	first, err := cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.NoError(t, err)
	second, err := cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.NoError(t, err)

	assert.Same(t, first, second, "second resolve must come from the cache")
	assert.Equal(t, int64(1), srv.requests.Load())
}

func TestResolveNormalizesVariants(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 8, 8), 0)
	cache := newTestCache(t, Config{})

	// Same image behind a messy and a clean URL: one download, one entry
	_, err := cache.Resolve(context.Background(), srv.URL+"//photos/1.png?select=*")
	require.NoError(t, err)
	_, err = cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.NoError(t, err)

	assert.Equal(t, int64(1), srv.requests.Load())
	assert.Equal(t, 1, cache.ItemCount())
}

func TestResolveConcurrentSharesDownload(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 8, 8), 50*time.Millisecond)
	cache := newTestCache(t, Config{})

	const resolvers = 8
	var wg sync.WaitGroup
	errs := make([]error, resolvers)

	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
		}(i)
	}
	wg.Wait()

	for i := 0; i < resolvers; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int64(1), srv.requests.Load(), "concurrent resolves must share one download")
}

func TestResolveCancelledDoesNotPopulate(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 8, 8), 200*time.Millisecond)
	cache := newTestCache(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.Resolve(ctx, srv.URL+"/photos/1.png")
	require.Error(t, err)
	assert.Equal(t, 0, cache.ItemCount(), "a cancelled resolve must not populate the cache")
}

func TestResolveRejectsInvalidURL(t *testing.T) {
	cache := newTestCache(t, Config{})

	_, err := cache.Resolve(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInvalidRequest))
}

func TestResolveNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	cache := newTestCache(t, Config{})

	_, err := cache.Resolve(context.Background(), srv.URL+"/photos/missing.png")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageFetch))
	assert.Equal(t, http.StatusNotFound, errors.StatusCode(err))
	assert.Equal(t, 0, cache.ItemCount())
}

func TestResolveRejectsNonImagePayload(t *testing.T) {
	srv := newImageServer(t, []byte("<html>definitely not pixels</html>"), 0)
	cache := newTestCache(t, Config{})

	_, err := cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
	assert.Equal(t, 0, cache.ItemCount())
}

func TestResolveRejectsOversizePayload(t *testing.T) {
	body := encodePNG(t, 64, 64)
	srv := newImageServer(t, body, 0)
	cache := newTestCache(t, Config{MaxBytes: int64(len(body)) - 1})

	_, err := cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageFetch))
	assert.Equal(t, 0, cache.ItemCount())
}

func TestThumbnail(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 100, 50), 0)
	cache := newTestCache(t, Config{})

	thumb, err := cache.Thumbnail(context.Background(), srv.URL+"/photos/1.png", 10)
	require.NoError(t, err)

	bounds := thumb.Bounds()
	assert.Equal(t, 10, bounds.Dx(), "thumbnail fits the bounding box")
	assert.Equal(t, 5, bounds.Dy(), "aspect ratio preserved")

	// Full decode and thumbnail are separate entries, one download total
	assert.Equal(t, 2, cache.ItemCount())
	assert.Equal(t, int64(1), srv.requests.Load())

	// A second thumbnail request hits the cache
	again, err := cache.Thumbnail(context.Background(), srv.URL+"/photos/1.png", 10)
	require.NoError(t, err)
	assert.Equal(t, thumb, again)
	assert.Equal(t, int64(1), srv.requests.Load())
}

func TestFlush(t *testing.T) {
	srv := newImageServer(t, encodePNG(t, 8, 8), 0)
	cache := newTestCache(t, Config{})

	_, err := cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.NoError(t, err)
	require.Equal(t, 1, cache.ItemCount())

	cache.Flush()
	assert.Equal(t, 0, cache.ItemCount())

	// Next resolve downloads again
	_, err = cache.Resolve(context.Background(), srv.URL+"/photos/1.png")
	require.NoError(t, err)
	assert.Equal(t, int64(2), srv.requests.Load())
}

func TestDefaultConfigApplied(t *testing.T) {
	cache := New(Config{}, nil, nil, nil)
	assert.Equal(t, DefaultConfig().TTL, cache.config.TTL)
	assert.Equal(t, DefaultConfig().MaxBytes, cache.config.MaxBytes)
	assert.Equal(t, DefaultConfig().RequestsPerSecond, cache.config.RequestsPerSecond)
}
