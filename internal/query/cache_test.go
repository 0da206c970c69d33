package query

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests step through staleness windows without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(DefaultConfig(), zerolog.Nop())
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, clock
}

var testClass = Class{Name: "test", Fresh: 2 * time.Minute}

func TestFetchMissThenHit(t *testing.T) {
	c, _ := newTestCache(t)

	var calls int32
	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "live-data", nil
		},
	}

	res := Fetch(context.Background(), c, q, nil)
	require.NoError(t, res.Err)
	assert.Equal(t, "live-data", res.Data)
	assert.Equal(t, SourceLive, res.Source)
	assert.False(t, res.Stale)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	res = Fetch(context.Background(), c, q, nil)
	assert.Equal(t, "live-data", res.Data)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "fresh hit must not refetch")
}

func TestStaleWhileRevalidate(t *testing.T) {
	c, clock := newTestCache(t)

	var calls int32
	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				return "first", nil
			}
			return "second", nil
		},
	}

	res := Fetch(context.Background(), c, q, nil)
	require.Equal(t, "first", res.Data)

	clock.Advance(3 * time.Minute)

	// Stale entry is served immediately; a refresh runs in the background.
	res = Fetch(context.Background(), c, q, nil)
	assert.Equal(t, "first", res.Data, "stale data is served, not blocked on")
	assert.True(t, res.Stale)
	assert.Equal(t, SourceLive, res.Source)

	c.Wait()

	res = Fetch(context.Background(), c, q, nil)
	assert.Equal(t, "second", res.Data)
	assert.False(t, res.Stale)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestConcurrentMissesCollapse(t *testing.T) {
	c, _ := newTestCache(t)

	gate := make(chan struct{})
	var calls int32
	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			atomic.AddInt32(&calls, 1)
			<-gate
			return "shared", nil
		},
	}

	const numRequests = 50
	var wg sync.WaitGroup
	results := make(chan Result[string], numRequests)
	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- Fetch(context.Background(), c, q, nil)
		}()
	}

	// Give every goroutine time to join the in-flight fetch, then release.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(results)

	for res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, "shared", res.Data)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "concurrent misses must share one fetch")
}

func TestDistinctParamsDistinctEntries(t *testing.T) {
	c, _ := newTestCache(t)

	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			return "page-" + params.Get("page"), nil
		},
	}

	res1 := Fetch(context.Background(), c, q, url.Values{"page": {"1"}})
	res2 := Fetch(context.Background(), c, q, url.Values{"page": {"2"}})

	assert.Equal(t, "page-1", res1.Data)
	assert.Equal(t, "page-2", res2.Data)
	assert.Equal(t, 2, c.Len())
}

func TestFailureKeepsPreviousData(t *testing.T) {
	c, clock := newTestCache(t)

	var fail atomic.Bool
	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			if fail.Load() {
				return "", errors.New("upstream down")
			}
			return "good", nil
		},
	}

	res := Fetch(context.Background(), c, q, nil)
	require.Equal(t, "good", res.Data)

	fail.Store(true)
	clock.Advance(3 * time.Minute)

	res = Fetch(context.Background(), c, q, nil)
	assert.Equal(t, "good", res.Data)
	c.Wait()

	// The failed refresh surfaces as an error on the kept data.
	res = Peek(c, q, nil)
	assert.Equal(t, "good", res.Data, "cached data survives a failed refresh")
	assert.Equal(t, SourceLive, res.Source)
	assert.Error(t, res.Err)
}

func TestFirstFetchFailure(t *testing.T) {
	c, _ := newTestCache(t)

	run := func(ctx context.Context, params url.Values) (string, error) {
		return "", errors.New("boom")
	}

	withPlaceholder := Query[string]{
		Class:       Class{Name: "with-ph", Fresh: time.Minute},
		Placeholder: func() string { return "fallback" },
		Run:         run,
	}
	res := Fetch(context.Background(), c, withPlaceholder, nil)
	assert.Error(t, res.Err)
	assert.Equal(t, SourcePlaceholder, res.Source)
	assert.Equal(t, "fallback", res.Data)

	bare := Query[string]{Class: Class{Name: "bare", Fresh: time.Minute}, Run: run}
	res = Fetch(context.Background(), c, bare, nil)
	assert.Error(t, res.Err)
	assert.Equal(t, SourceNone, res.Source)
	assert.Empty(t, res.Data)
}

func TestPeekPlaceholderThenLive(t *testing.T) {
	c, _ := newTestCache(t)

	q := Query[[]string]{
		Class:       testClass,
		Placeholder: func() []string { return []string{} },
		Run: func(ctx context.Context, params url.Values) ([]string, error) {
			return []string{"Молоко", "Сыр"}, nil
		},
	}

	updates, cancel := Subscribe(c, q, nil)
	defer cancel()

	res := Peek(c, q, nil)
	assert.Equal(t, SourcePlaceholder, res.Source)
	assert.Empty(t, res.Data)

	select {
	case live := <-updates:
		assert.Equal(t, []string{"Молоко", "Сыр"}, live)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never saw the live update")
	}

	res = Peek(c, q, nil)
	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, []string{"Молоко", "Сыр"}, res.Data)
}

func TestPrefetchNoopWhenFresh(t *testing.T) {
	c, clock := newTestCache(t)

	var calls int32
	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "data", nil
		},
	}

	Fetch(context.Background(), c, q, nil)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	Prefetch(c, q, nil)
	c.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "prefetch of a fresh entry is a no-op")

	clock.Advance(3 * time.Minute)
	Prefetch(c, q, nil)
	c.Wait()
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestForceRefreshIgnoresFreshness(t *testing.T) {
	c, _ := newTestCache(t)

	var calls int32
	q := Query[string]{
		Class: testClass,
		Run: func(ctx context.Context, params url.Values) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "data", nil
		},
	}

	Fetch(context.Background(), c, q, nil)
	_, err := ForceRefresh(context.Background(), c, q, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestLastWriteWins(t *testing.T) {
	c, _ := newTestCache(t)
	key := Key("test", nil)

	// Two fetches start in order; the older one completes last and its
	// result must be discarded.
	older := c.beginFetch(key, "test")
	newer := c.beginFetch(key, "test")

	assert.True(t, c.commit(key, newer, "newer", c.now()))
	assert.False(t, c.commit(key, older, "older", c.now()))

	q := Query[string]{Class: testClass, Run: nil}
	res := Peek(c, q, nil)
	assert.Equal(t, "newer", res.Data)
}

func TestStaleFailureDoesNotClobberNewerResult(t *testing.T) {
	c, _ := newTestCache(t)
	key := Key("test", nil)

	older := c.beginFetch(key, "test")
	newer := c.beginFetch(key, "test")

	require.True(t, c.commit(key, newer, "newer", c.now()))
	c.fail(key, older, errors.New("slow failure"))

	q := Query[string]{Class: testClass, Run: nil}
	res := Peek(c, q, nil)
	assert.NoError(t, res.Err, "a superseded failure must not mark the newer result")
	assert.Equal(t, "newer", res.Data)
}

func TestSubscribeCancel(t *testing.T) {
	c, _ := newTestCache(t)

	q := Query[string]{Class: testClass, Run: nil}
	updates, cancel := Subscribe(c, q, nil)
	cancel()
	cancel() // idempotent

	_, open := <-updates
	assert.False(t, open, "channel closes after cancel")

	// Commits after cancel must not panic.
	key := Key("test", nil)
	seq := c.beginFetch(key, "test")
	c.commit(key, seq, "data", c.now())
}

func TestSubscribeCancelDuringCommits(t *testing.T) {
	c, _ := newTestCache(t)

	q := Query[string]{Class: testClass, Run: nil}
	key := Key("test", nil)

	// Hammer commits from several goroutines while subscribers come and go;
	// a cancel landing mid-commit must never observe a send to its channel.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				seq := c.beginFetch(key, "test")
				c.commit(key, seq, "data", c.now())
			}
		}()
	}

	for i := 0; i < 500; i++ {
		updates, cancel := Subscribe(c, q, nil)
		select {
		case <-updates:
		default:
		}
		cancel()
	}

	close(stop)
	wg.Wait()
}

func TestSubscribeCancelWithBlockedConsumer(t *testing.T) {
	c, _ := newTestCache(t)

	q := Query[string]{Class: testClass, Run: nil}
	key := Key("test", nil)

	updates, cancel := Subscribe(c, q, nil)

	// Fill well past both channel buffers without the consumer reading.
	for i := 0; i < 64; i++ {
		seq := c.beginFetch(key, "test")
		c.commit(key, seq, "data", c.now())
	}

	cancel()

	// Canceling with a backed-up consumer still closes the channel; nothing
	// stays blocked holding it open.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-updates:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("update channel never closed after cancel")
		}
	}
}
