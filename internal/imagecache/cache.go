// Package imagecache resolves image URLs to decoded pixel data through an
// in-memory, TTL-bounded cache keyed by normalized URL. Concurrent resolves
// of the same URL share a single download.
package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	// Pixel decoders for the formats the gallery serves.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/kvirtanen/galleria/internal/backend"
	"github.com/kvirtanen/galleria/internal/errors"
	"github.com/kvirtanen/galleria/internal/httpclient"
	"github.com/kvirtanen/galleria/internal/logging"
	"github.com/kvirtanen/galleria/internal/observability/metrics"
)

// FetchedImage is a downloaded and decoded image with its metadata.
type FetchedImage struct {
	URL       string // normalized URL the image was fetched from
	Data      []byte // raw encoded bytes
	Format    string // decoded format name (jpeg, png, gif)
	Width     int
	Height    int
	FetchedAt time.Time
}

// Config holds tunables for the cache.
type Config struct {
	TTL               time.Duration // how long entries stay cached
	MaxBytes          int64         // maximum accepted payload size
	RequestsPerSecond float64       // download rate limit
}

// DefaultConfig returns cache defaults suitable for a single-screen viewer.
func DefaultConfig() Config {
	return Config{
		TTL:               30 * time.Minute,
		MaxBytes:          20 * 1024 * 1024,
		RequestsPerSecond: 10,
	}
}

// inflightFetch tracks one download in progress so concurrent resolves of
// the same key wait for it instead of downloading again.
type inflightFetch struct {
	done chan struct{}
	img  *FetchedImage
	err  error
}

// Cache downloads, decodes and caches remote images.
type Cache struct {
	config     Config
	httpClient *httpclient.Client
	store      *gocache.Cache
	inflight   sync.Map // normalized URL -> *inflightFetch
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.ImageCacheMetrics
}

// New creates an image cache. httpc, logger and m may be nil.
func New(config Config, httpc *httpclient.Client, logger *slog.Logger, m *metrics.ImageCacheMetrics) *Cache {
	defaults := DefaultConfig()
	if config.TTL == 0 {
		config.TTL = defaults.TTL
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = defaults.MaxBytes
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}

	if httpc == nil {
		httpc = httpclient.New(nil)
	}
	if logger == nil {
		logger = logging.ForService("imagecache")
	}

	return &Cache{
		config:     config,
		httpClient: httpc,
		store:      gocache.New(config.TTL, config.TTL*2),
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:     logger,
		metrics:    m,
	}
}

// Resolve returns the decoded image for a URL, downloading it at most once
// per cache lifetime. A cancelled resolve never populates the cache.
func (c *Cache) Resolve(ctx context.Context, rawURL string) (*FetchedImage, error) {
	key, err := backend.NormalizeImageURL(rawURL)
	if err != nil {
		return nil, err
	}

	if cached, found := c.store.Get(key); found {
		if img, ok := cached.(*FetchedImage); ok {
			if c.metrics != nil {
				c.metrics.IncrementCacheHits()
			}
			c.logger.Debug("Image cache hit", "key", key)
			return img, nil
		}
	}

	if c.metrics != nil {
		c.metrics.IncrementCacheMisses()
	}

	call := &inflightFetch{done: make(chan struct{})}
	if existing, loaded := c.inflight.LoadOrStore(key, call); loaded {
		// Another resolve owns the download, wait for it
		other := existing.(*inflightFetch)
		select {
		case <-other.done:
			return other.img, other.err
		case <-ctx.Done():
			return nil, errors.Newf("image resolve cancelled: %w", ctx.Err()).
				Category(errors.CategoryCancellation).
				Component("imagecache").
				Build()
		}
	}

	call.img, call.err = c.fetchAndStore(ctx, key)
	c.inflight.Delete(key)
	close(call.done)

	return call.img, call.err
}

// Thumbnail resolves the image and scales it to fit a maxDim bounding box.
// Thumbnails are cached separately from the full decodes.
func (c *Cache) Thumbnail(ctx context.Context, rawURL string, maxDim uint) (image.Image, error) {
	key, err := backend.NormalizeImageURL(rawURL)
	if err != nil {
		return nil, err
	}
	thumbKey := fmt.Sprintf("%s#thumb:%d", key, maxDim)

	if cached, found := c.store.Get(thumbKey); found {
		if thumb, ok := cached.(image.Image); ok {
			if c.metrics != nil {
				c.metrics.IncrementCacheHits()
			}
			return thumb, nil
		}
	}

	fetched, err := c.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(fetched.Data))
	if err != nil {
		return nil, errors.Newf("failed to decode image for thumbnail: %w", err).
			Category(errors.CategoryDecode).
			Component("imagecache").
			Context("format", fetched.Format).
			Build()
	}

	thumb := resize.Thumbnail(maxDim, maxDim, decoded, resize.Lanczos3)
	if ctx.Err() == nil {
		c.store.Set(thumbKey, thumb, gocache.DefaultExpiration)
	}

	return thumb, nil
}

// fetchAndStore downloads and decodes one image and, unless the context was
// cancelled meanwhile, stores it under the normalized key.
func (c *Cache) fetchAndStore(ctx context.Context, key string) (*FetchedImage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Newf("image fetch cancelled: %w", err).
			Category(errors.CategoryCancellation).
			Component("imagecache").
			Build()
	}

	start := time.Now()
	resp, err := c.httpClient.Get(ctx, key)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrementDownloadErrors()
		}
		return nil, errors.Newf("image download failed: %w", err).
			Category(errors.CategoryImageFetch).
			Component("imagecache").
			URLContext(key).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("Failed to close image response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		if c.metrics != nil {
			c.metrics.IncrementDownloadErrors()
		}
		return nil, errors.Newf("image download returned status %d", resp.StatusCode).
			Category(errors.CategoryImageFetch).
			Component("imagecache").
			Context("status_code", resp.StatusCode).
			URLContext(key).
			Build()
	}

	// Cap reads one byte over the limit so oversize payloads are detectable
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes+1))
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrementDownloadErrors()
		}
		return nil, errors.Newf("failed to read image body: %w", err).
			Category(errors.CategoryImageFetch).
			Component("imagecache").
			URLContext(key).
			Build()
	}
	if int64(len(data)) > c.config.MaxBytes {
		return nil, errors.Newf("image exceeds size limit of %d bytes", c.config.MaxBytes).
			Category(errors.CategoryImageFetch).
			Component("imagecache").
			Context("limit_bytes", c.config.MaxBytes).
			URLContext(key).
			Build()
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Newf("image failed to decode: %w", err).
			Category(errors.CategoryDecode).
			Component("imagecache").
			Context("content_type", resp.Header.Get("Content-Type")).
			URLContext(key).
			Build()
	}

	img := &FetchedImage{
		URL:       key,
		Data:      data,
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		FetchedAt: time.Now(),
	}

	if c.metrics != nil {
		c.metrics.IncrementImageDownloads()
		c.metrics.ObserveDownloadDuration(time.Since(start).Seconds())
	}

	// A cancelled fetch must not populate the cache with its result
	if ctx.Err() != nil {
		return nil, errors.Newf("image fetch cancelled: %w", ctx.Err()).
			Category(errors.CategoryCancellation).
			Component("imagecache").
			Build()
	}

	c.store.Set(key, img, gocache.DefaultExpiration)
	if c.metrics != nil {
		c.metrics.SetCacheEntries(c.store.ItemCount())
	}

	c.logger.Debug("Image cached",
		"key", key,
		"format", format,
		"bytes", len(data),
		"width", cfg.Width,
		"height", cfg.Height)

	return img, nil
}

// Flush drops all cached entries.
func (c *Cache) Flush() {
	c.store.Flush()
	if c.metrics != nil {
		c.metrics.SetCacheEntries(0)
	}
	c.logger.Info("Image cache flushed")
}

// ItemCount returns the number of cached entries, expired ones included.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}
