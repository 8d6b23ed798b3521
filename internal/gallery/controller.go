// Package gallery owns the in-memory ordered collection of fetched image
// records: pagination cursor, de-duplication, selection and the
// one-fetch-in-flight discipline.
package gallery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kvirtanen/galleria/internal/backend"
	"github.com/kvirtanen/galleria/internal/logging"
	"github.com/kvirtanen/galleria/internal/observability/metrics"
)

// PageFetcher is the slice of the backend client the controller needs.
type PageFetcher interface {
	FetchPage(ctx context.Context, q backend.PageQuery) ([]backend.ImageRecord, error)
}

// Config holds tunables for the controller.
type Config struct {
	PageSize          int    // rows requested per page
	PrefetchThreshold int    // distance from the end that triggers the next page
	Owner             string // optional owner filter passed through to fetches
}

// DefaultConfig returns controller defaults matching the viewer behavior.
func DefaultConfig() Config {
	return Config{
		PageSize:          20,
		PrefetchThreshold: 3,
	}
}

// State is an immutable snapshot of the controller, safe to hand to a
// presentation layer.
type State struct {
	Records   []backend.ImageRecord
	Selected  int
	Offset    int
	Loading   bool
	Exhausted bool
	Err       error
}

// Controller serializes all mutations of the record collection and cursor
// behind one mutex. Fetches run on the calling goroutine; a generation
// counter tags each reload so a stale in-flight result is discarded instead
// of applied.
type Controller struct {
	fetcher PageFetcher
	config  Config
	logger  *slog.Logger
	metrics *metrics.GalleryMetrics

	mu         sync.Mutex
	records    []backend.ImageRecord
	seen       map[int64]struct{}
	selected   int
	offset     int
	exhausted  bool
	loading    bool
	generation uint64
	lastErr    error
	onChange   func(State)
}

// NewController creates a controller around the given fetcher. logger and m
// may be nil.
func NewController(fetcher PageFetcher, config Config, logger *slog.Logger, m *metrics.GalleryMetrics) *Controller {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	if config.PrefetchThreshold <= 0 {
		config.PrefetchThreshold = DefaultConfig().PrefetchThreshold
	}
	if logger == nil {
		logger = logging.ForService("gallery")
	}

	return &Controller{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
		metrics: m,
		seen:    make(map[int64]struct{}),
	}
}

// SetOnChange registers a callback invoked with a state snapshot after every
// applied mutation. The callback runs outside the controller lock.
func (c *Controller) SetOnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns a copy of the current state. The records slice is copied
// so later appends never show through.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	records := make([]backend.ImageRecord, len(c.records))
	copy(records, c.records)
	return State{
		Records:   records,
		Selected:  c.selected,
		Offset:    c.offset,
		Loading:   c.loading,
		Exhausted: c.exhausted,
		Err:       c.lastErr,
	}
}

// Reload resets the cursor and replaces the collection with the first page.
// A reload issued while another fetch is in flight supersedes it: the older
// result arrives with a stale generation and is discarded. On failure the
// collection is left untouched and the error surfaces in the state.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.loading = true
	query := backend.PageQuery{Offset: 0, Limit: c.config.PageSize, Owner: c.config.Owner}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncrementReloads()
	}

	page, err := c.fetcher.FetchPage(ctx, query)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale reload result", "generation", gen)
		if c.metrics != nil {
			c.metrics.IncrementStaleDiscards()
		}
		return nil
	}
	c.loading = false

	if err != nil {
		c.lastErr = err
		notify := c.notifierLocked()
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncrementLoadErrors()
		}
		c.logger.Error("Reload failed", "error", err)
		notify()
		return err
	}

	c.records = c.records[:0]
	c.seen = make(map[int64]struct{}, len(page))
	c.appendUniqueLocked(page)
	c.offset = len(page)
	c.exhausted = len(page) < c.config.PageSize
	c.selected = 0
	c.lastErr = nil
	c.updateGaugeLocked()
	notify := c.notifierLocked()
	count := len(c.records)
	exhausted := c.exhausted
	c.mu.Unlock()

	c.logger.Info("Gallery reloaded", "records", count, "exhausted", exhausted)
	notify()
	return nil
}

// EnsureLoaded fetches the next page when the given position is within the
// prefetch threshold of the end of the collection. A call while a fetch is
// already in flight, or after the set is exhausted, is a no-op.
func (c *Controller) EnsureLoaded(ctx context.Context, near int) error {
	c.mu.Lock()
	if c.loading || c.exhausted || near < len(c.records)-c.config.PrefetchThreshold {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	gen := c.generation
	query := backend.PageQuery{Offset: c.offset, Limit: c.config.PageSize, Owner: c.config.Owner}
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, query)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale page result", "offset", query.Offset)
		if c.metrics != nil {
			c.metrics.IncrementStaleDiscards()
		}
		return nil
	}
	c.loading = false

	if err != nil {
		// Keep already-loaded records, surface the error only
		c.lastErr = err
		notify := c.notifierLocked()
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncrementLoadErrors()
		}
		c.logger.Error("Page load failed", "offset", query.Offset, "error", err)
		notify()
		return err
	}

	added := c.appendUniqueLocked(page)
	c.offset += len(page)
	c.exhausted = len(page) < c.config.PageSize
	c.lastErr = nil
	c.updateGaugeLocked()
	notify := c.notifierLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncrementPageLoads()
	}
	c.logger.Debug("Page appended",
		"offset", query.Offset,
		"rows", len(page),
		"added", added)
	notify()
	return nil
}

// Select clamps the index into the collection bounds and marks it selected.
// Out-of-range requests are clamped, never errors. Returns the effective
// index.
func (c *Controller) Select(index int) int {
	c.mu.Lock()
	if index < 0 {
		index = 0
	}
	if last := len(c.records) - 1; index > last {
		if last < 0 {
			index = 0
		} else {
			index = last
		}
	}
	c.selected = index
	notify := c.notifierLocked()
	c.mu.Unlock()

	notify()
	return index
}

// Selected returns the currently selected record, or nil when the
// collection is empty.
func (c *Controller) Selected() *backend.ImageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return nil
	}
	record := c.records[c.selected]
	return &record
}

// Reset drops all state, used on sign-out. Any in-flight fetch result is
// invalidated through the generation counter.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	c.records = nil
	c.seen = make(map[int64]struct{})
	c.selected = 0
	c.offset = 0
	c.exhausted = false
	c.loading = false
	c.lastErr = nil
	c.updateGaugeLocked()
	notify := c.notifierLocked()
	c.mu.Unlock()

	c.logger.Info("Gallery reset")
	notify()
}

// appendUniqueLocked appends records whose id is not yet present, keeping
// first occurrence. Caller holds the lock.
func (c *Controller) appendUniqueLocked(page []backend.ImageRecord) int {
	added := 0
	for i := range page {
		if _, dup := c.seen[page[i].ID]; dup {
			if c.metrics != nil {
				c.metrics.IncrementDuplicatesSeen()
			}
			continue
		}
		c.seen[page[i].ID] = struct{}{}
		c.records = append(c.records, page[i])
		added++
	}
	return added
}

func (c *Controller) updateGaugeLocked() {
	if c.metrics != nil {
		c.metrics.SetRecordsLoaded(len(c.records))
	}
}

// notifierLocked captures the change callback and a snapshot under the lock
// and returns a closure to run after unlocking.
func (c *Controller) notifierLocked() func() {
	if c.onChange == nil {
		return func() {}
	}
	fn := c.onChange
	snapshot := c.snapshotLocked()
	return func() { fn(snapshot) }
}
