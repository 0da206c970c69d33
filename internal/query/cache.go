// Package query implements the keyed read-through cache between the
// dashboard and the pricing analytics API. Every API read flows through a
// Query definition: results are cached per derived key, served fresh within
// the class staleness window, served stale while a background refresh runs,
// and de-duplicated so concurrent requests for one key trigger one upstream
// fetch.
package query

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Source identifies where the data in a Result came from.
type Source int

const (
	// SourceNone means no data is available at all.
	SourceNone Source = iota
	// SourcePlaceholder means the query's placeholder is shown while the
	// first fetch is still pending (or failed with nothing cached).
	SourcePlaceholder
	// SourceLive means the data came from the upstream API.
	SourceLive
)

func (s Source) String() string {
	switch s {
	case SourcePlaceholder:
		return "placeholder"
	case SourceLive:
		return "live"
	default:
		return "none"
	}
}

// Class groups queries that share a staleness window. Entries younger than
// Fresh are served without contacting the API; older entries are served
// stale while a refresh runs in the background.
type Class struct {
	Name  string
	Fresh time.Duration
}

// Query binds a class to an upstream fetch. Placeholder, when set, supplies
// the data shown before the first fetch completes.
type Query[T any] struct {
	Class       Class
	Placeholder func() T
	Run         func(ctx context.Context, params url.Values) (T, error)
}

// Result carries cached data together with its provenance. Err holds the
// most recent fetch failure for the key; when data is present alongside a
// non-nil Err the data predates the failure.
type Result[T any] struct {
	Data      T
	Source    Source
	Stale     bool
	Err       error
	FetchedAt time.Time
}

// Config controls cache behavior.
type Config struct {
	// RefreshConcurrency bounds the number of background refreshes
	// running at once.
	RefreshConcurrency int64
	// FetchTimeout caps a single upstream fetch, foreground or background.
	FetchTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RefreshConcurrency: 8,
		FetchTimeout:       30 * time.Second,
	}
}

// entry is the cached state for one key. Protected by Cache.mu.
type entry struct {
	class      string
	data       any
	hasData    bool
	fetchedAt  time.Time
	lastErr    error
	seq        uint64 // generation of the most recently started fetch
	refreshing bool
	subs       map[uint64]chan any
}

// Cache holds entries for all query classes. Background refreshes use a
// dedicated context so they survive the request that triggered them, the
// way cache loads should not die with an impatient caller.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSub uint64

	sf         singleflight.Group
	refreshSem *semaphore.Weighted

	config  Config
	logger  zerolog.Logger
	metrics *MetricsRecorder

	// now is replaceable in tests to step through staleness windows.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a cache.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = DefaultConfig().RefreshConcurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries:    make(map[string]*entry),
		refreshSem: semaphore.NewWeighted(cfg.RefreshConcurrency),
		config:     cfg,
		logger:     logger.With().Str("component", "query_cache").Logger(),
		metrics:    NewMetricsRecorder(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Close cancels background refreshes and waits for them to finish.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until all in-flight background refreshes complete.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) entryLocked(key, class string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{class: class, subs: make(map[uint64]chan any)}
		c.entries[key] = e
	}
	return e
}

// beginFetch registers a fetch start for the key and returns its generation.
func (c *Cache) beginFetch(key, class string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key, class)
	e.seq++
	return e.seq
}

// commit stores a successful fetch result unless a newer fetch for the key
// started in the meantime, in which case the result is discarded. Returns
// whether the result was applied.
func (c *Cache) commit(key string, seq uint64, data any, fetchedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || seq != e.seq {
		if ok {
			c.metrics.RecordDiscarded(e.class)
		}
		return false
	}
	e.data = data
	e.hasData = true
	e.fetchedAt = fetchedAt
	e.lastErr = nil

	// Notify under the lock: a concurrent cancel removes its channel under
	// the same lock, so a send can never race with the subscriber going
	// away. The sends never block; slow subscribers drop intermediate
	// updates and see the latest state on their next read.
	for _, ch := range e.subs {
		select {
		case ch <- data:
		default:
		}
	}
	return true
}

// fail records a fetch failure. Previously cached data stays intact so the
// dashboard keeps showing the last known state alongside the error.
func (c *Cache) fail(key string, seq uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || seq != e.seq {
		return
	}
	e.lastErr = err
}

// runFetch performs the upstream fetch for key, collapsing concurrent
// callers into a single call via singleflight.
func runFetch[T any](ctx context.Context, c *Cache, key string, q Query[T], params url.Values) (T, error) {
	v, err, _ := c.sf.Do(key, func() (any, error) {
		seq := c.beginFetch(key, q.Class.Name)
		c.metrics.RecordRefresh(q.Class.Name)

		fctx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()

		start := time.Now()
		data, err := q.Run(fctx, params)
		c.metrics.RecordFetchDuration(q.Class.Name, time.Since(start))
		if err != nil {
			c.metrics.RecordFetchError(q.Class.Name)
			c.fail(key, seq, err)
			return nil, err
		}
		c.commit(key, seq, data, c.now())
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// refreshAsync starts a background refresh for key unless one is already
// pending. The refresh uses the cache's own context, not the request's.
func refreshAsync[T any](c *Cache, q Query[T], key string, params url.Values) {
	c.mu.Lock()
	e := c.entryLocked(key, q.Class.Name)
	if e.refreshing {
		c.mu.Unlock()
		return
	}
	e.refreshing = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				e.refreshing = false
			}
			c.mu.Unlock()
		}()

		if err := c.refreshSem.Acquire(c.ctx, 1); err != nil {
			return
		}
		defer c.refreshSem.Release(1)

		if _, err := runFetch(c.ctx, c, key, q, params); err != nil {
			c.logger.Warn().
				Err(err).
				Str("class", q.Class.Name).
				Msg("Background refresh failed")
		}
	}()
}

// placeholderResult builds the result returned when no data is cached.
func placeholderResult[T any](q Query[T], err error) Result[T] {
	if q.Placeholder != nil {
		return Result[T]{Data: q.Placeholder(), Source: SourcePlaceholder, Err: err}
	}
	var zero T
	return Result[T]{Data: zero, Source: SourceNone, Err: err}
}

// Fetch returns data for the query, blocking on the upstream API only when
// nothing usable is cached. Fresh entries are returned as-is; stale entries
// are returned immediately while a background refresh runs; a miss fetches
// synchronously. A failed fetch with nothing cached yields the placeholder
// with the error attached.
func Fetch[T any](ctx context.Context, c *Cache, q Query[T], params url.Values) Result[T] {
	key := Key(q.Class.Name, params)

	c.mu.Lock()
	e := c.entryLocked(key, q.Class.Name)
	if e.hasData {
		data := e.data.(T)
		fetchedAt := e.fetchedAt
		lastErr := e.lastErr
		stale := c.now().Sub(fetchedAt) >= q.Class.Fresh
		c.mu.Unlock()

		if !stale {
			c.metrics.RecordHit(q.Class.Name)
			return Result[T]{Data: data, Source: SourceLive, Err: lastErr, FetchedAt: fetchedAt}
		}
		c.metrics.RecordStaleServe(q.Class.Name)
		refreshAsync(c, q, key, params)
		return Result[T]{Data: data, Source: SourceLive, Stale: true, Err: lastErr, FetchedAt: fetchedAt}
	}
	c.mu.Unlock()
	c.metrics.RecordMiss(q.Class.Name)

	data, err := runFetch(ctx, c, key, q, params)
	if err != nil {
		return placeholderResult(q, err)
	}
	return Result[T]{Data: data, Source: SourceLive, FetchedAt: c.now()}
}

// Peek returns whatever is cached without blocking on the API. A miss
// returns the placeholder and kicks off a background fetch, so a subscriber
// observes the placeholder state followed by the live one.
func Peek[T any](c *Cache, q Query[T], params url.Values) Result[T] {
	key := Key(q.Class.Name, params)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.hasData {
		data := e.data.(T)
		fetchedAt := e.fetchedAt
		lastErr := e.lastErr
		stale := c.now().Sub(fetchedAt) >= q.Class.Fresh
		c.mu.Unlock()

		if stale {
			c.metrics.RecordStaleServe(q.Class.Name)
			refreshAsync(c, q, key, params)
		} else {
			c.metrics.RecordHit(q.Class.Name)
		}
		return Result[T]{Data: data, Source: SourceLive, Stale: stale, Err: lastErr, FetchedAt: fetchedAt}
	}
	var lastErr error
	if ok {
		lastErr = e.lastErr
	}
	c.mu.Unlock()

	c.metrics.RecordMiss(q.Class.Name)
	refreshAsync(c, q, key, params)
	return placeholderResult(q, lastErr)
}

// Prefetch warms the cache for the query in the background. It is a no-op
// when a fresh entry already exists, so prefetching on every navigation
// hover costs nothing once warm.
func Prefetch[T any](c *Cache, q Query[T], params url.Values) {
	key := Key(q.Class.Name, params)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.hasData && c.now().Sub(e.fetchedAt) < q.Class.Fresh {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	refreshAsync(c, q, key, params)
}

// ForceRefresh fetches from the upstream API regardless of freshness and
// blocks until the result is in. Used after mutations whose effect must be
// re-read, and by the status poller.
func ForceRefresh[T any](ctx context.Context, c *Cache, q Query[T], params url.Values) (T, error) {
	key := Key(q.Class.Name, params)
	return runFetch(ctx, c, key, q, params)
}

// Subscribe delivers every committed update for the query's key until
// cancel is called. Updates a slow subscriber misses are dropped, not
// queued without bound.
func Subscribe[T any](c *Cache, q Query[T], params url.Values) (<-chan T, func()) {
	key := Key(q.Class.Name, params)
	raw := make(chan any, 8)

	c.mu.Lock()
	e := c.entryLocked(key, q.Class.Name)
	c.nextSub++
	id := c.nextSub
	e.subs[id] = raw
	c.mu.Unlock()

	out := make(chan T, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case v := <-raw:
				select {
				case out <- v.(T):
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				delete(e.subs, id)
			}
			c.mu.Unlock()
			close(done)
		})
	}
	return out, cancel
}
