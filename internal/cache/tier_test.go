package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var fiveMin = Freshness{MaxAge: 5 * time.Minute, StaleWhileRevalidate: time.Hour}

func newTestTier(clock *fakeClock) *Tier {
	store := NewMemoryStore()
	store.now = clock.Now
	return NewTier(context.Background(), TierOptions{Name: "volatile", Store: store, Now: clock.Now})
}

func constLoader(payload string, calls *atomic.Int32) Loader {
	return func(context.Context) ([]byte, bool, error) {
		calls.Add(1)
		return []byte(payload), true, nil
	}
}

func TestTier_MissHitStale(t *testing.T) {
	clock := newFakeClock()
	tier := newTestTier(clock)
	ctx := context.Background()
	var calls atomic.Int32

	b, st, err := tier.Get(ctx, "k", fiveMin, constLoader("v1", &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, st)
	assert.Equal(t, "v1", string(b))

	b, st, err = tier.Get(ctx, "k", fiveMin, constLoader("v2", &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusHit, st)
	assert.Equal(t, "v1", string(b))

	clock.Advance(6 * time.Minute)
	b, st, err = tier.Get(ctx, "k", fiveMin, constLoader("v2", &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusStale, st)
	assert.Equal(t, "v1", string(b))
	tier.Wait()

	b, st, _ = tier.Get(ctx, "k", fiveMin, constLoader("v3", &calls))
	assert.Equal(t, StatusHit, st)
	assert.Equal(t, "v2", string(b))
	assert.Equal(t, int32(2), calls.Load())
}

func TestTier_ConcurrentMissesShareOneLoad(t *testing.T) {
	tier := newTestTier(newFakeClock())
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, bool, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), true, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _, err := tier.Get(context.Background(), "k", fiveMin, load)
			if err == nil {
				results[i] = string(b)
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestTier_ConcurrentStaleReadsTriggerOneRefresh(t *testing.T) {
	clock := newFakeClock()
	tier := newTestTier(clock)
	ctx := context.Background()
	require.NoError(t, tier.Put(ctx, "k", []byte("old"), fiveMin))
	clock.Advance(10 * time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, bool, error) {
		calls.Add(1)
		<-release
		return []byte("new"), true, nil
	}

	const n = 32
	var wg sync.WaitGroup
	var stale atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, st, err := tier.Get(ctx, "k", fiveMin, load)
			if err == nil && st == StatusStale && string(b) == "old" {
				stale.Add(1)
			}
		}()
	}
	// Stale reads return without waiting for the refresh.
	wg.Wait()
	assert.Equal(t, int32(n), stale.Load())

	close(release)
	tier.Wait()
	assert.Equal(t, int32(1), calls.Load())

	b, st, err := tier.Get(ctx, "k", fiveMin, load)
	require.NoError(t, err)
	assert.Equal(t, StatusHit, st)
	assert.Equal(t, "new", string(b))
}

func TestTier_FailedRefreshKeepsStaleEntry(t *testing.T) {
	clock := newFakeClock()
	tier := newTestTier(clock)
	ctx := context.Background()
	require.NoError(t, tier.Put(ctx, "k", []byte("old"), fiveMin))
	clock.Advance(10 * time.Minute)

	failing := func(context.Context) ([]byte, bool, error) {
		return nil, false, errors.New("upstream down")
	}

	b, st, err := tier.Get(ctx, "k", fiveMin, failing)
	require.NoError(t, err)
	assert.Equal(t, StatusStale, st)
	tier.Wait()

	b2, st2, err := tier.Get(ctx, "k", fiveMin, failing)
	require.NoError(t, err)
	assert.Equal(t, StatusStale, st2)
	assert.Equal(t, b, b2)
	tier.Wait()
}

func TestTier_MissErrorIsReturned(t *testing.T) {
	tier := newTestTier(newFakeClock())
	boom := errors.New("boom")
	_, _, err := tier.Get(context.Background(), "k", fiveMin, func(context.Context) ([]byte, bool, error) {
		return nil, false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTier_UnstoredResultIsNotCached(t *testing.T) {
	clock := newFakeClock()
	tier := newTestTier(clock)
	ctx := context.Background()
	require.NoError(t, tier.Put(ctx, "k", []byte("good"), fiveMin))
	clock.Advance(10 * time.Minute)

	drift := func(context.Context) ([]byte, bool, error) { return []byte("empty"), false, nil }

	_, _, _ = tier.Get(ctx, "k", fiveMin, drift)
	tier.Wait()
	b, st, _ := tier.Get(ctx, "k", fiveMin, drift)
	assert.Equal(t, StatusStale, st)
	assert.Equal(t, "good", string(b))
	tier.Wait()

	b, st, err := tier.Get(ctx, "other", fiveMin, drift)
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, st)
	assert.Equal(t, "empty", string(b))
	_, st, _ = tier.Get(ctx, "other", fiveMin, drift)
	assert.Equal(t, StatusMiss, st)
}

func TestTier_ForceRefreshIsPerTier(t *testing.T) {
	clock := newFakeClock()
	volatile := newTestTier(clock)
	catalog := newTestTier(clock)
	ctx := context.Background()
	var calls atomic.Int32

	for _, tier := range []*Tier{volatile, catalog} {
		_, _, err := tier.Get(ctx, "k", fiveMin, constLoader("v1", &calls))
		require.NoError(t, err)
	}

	volatile.ForceRefresh()
	clock.Advance(time.Second)

	_, st, _ := volatile.Get(ctx, "k", fiveMin, constLoader("v2", &calls))
	assert.Equal(t, StatusStale, st)
	volatile.Wait()

	_, st, _ = catalog.Get(ctx, "k", fiveMin, constLoader("v2", &calls))
	assert.Equal(t, StatusHit, st)

	b, st, _ := volatile.Get(ctx, "k", fiveMin, constLoader("v3", &calls))
	assert.Equal(t, StatusHit, st)
	assert.Equal(t, "v2", string(b))
}

func TestTier_LastWaiterCancelsLoad(t *testing.T) {
	tier := newTestTier(newFakeClock())
	started := make(chan struct{})
	aborted := make(chan struct{})
	load := func(ctx context.Context) ([]byte, bool, error) {
		close(started)
		<-ctx.Done()
		close(aborted)
		return nil, false, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := tier.Get(ctx, "k", fiveMin, load)
		errc <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("load was not cancelled after its only waiter left")
	}
}

type refreshHook func()

func (refreshHook) CacheResult(string, Status)    {}
func (h refreshHook) RefreshResult(string, error) { h() }

// A miss that arrives as a background refresh finishes must run on its own
// context, not on the refresh's, which is cancelled right after.
func TestTier_MissAfterRefreshRunsItsOwnLoad(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	store.now = clock.Now
	ctx := context.Background()

	type result struct {
		payload string
		err     error
	}
	missed := make(chan result, 1)

	var tier *Tier
	hook := refreshHook(func() {
		assert.NoError(t, store.Delete(ctx, "k"))
		started := make(chan struct{})
		go func() {
			b, _, err := tier.Get(ctx, "k", fiveMin, func(lctx context.Context) ([]byte, bool, error) {
				close(started)
				tier.Wait()
				if err := lctx.Err(); err != nil {
					return nil, false, err
				}
				return []byte("own"), true, nil
			})
			missed <- result{string(b), err}
		}()
		select {
		case <-started:
		case <-time.After(2 * time.Second):
		}
	})
	tier = NewTier(ctx, TierOptions{Name: "volatile", Store: store, Observer: hook, Now: clock.Now})

	require.NoError(t, tier.Put(ctx, "k", []byte("old"), fiveMin))
	clock.Advance(10 * time.Minute)

	var calls atomic.Int32
	b, st, err := tier.Get(ctx, "k", fiveMin, constLoader("refreshed", &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusStale, st)
	assert.Equal(t, "old", string(b))

	select {
	case r := <-missed:
		require.NoError(t, r.err)
		assert.Equal(t, "own", r.payload)
	case <-time.After(3 * time.Second):
		t.Fatal("miss after refresh never completed")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTier_ExpiredBeyondRevalidationWindowIsMiss(t *testing.T) {
	clock := newFakeClock()
	tier := newTestTier(clock)
	ctx := context.Background()
	require.NoError(t, tier.Put(ctx, "k", []byte("old"), fiveMin))
	clock.Advance(2 * time.Hour)

	var calls atomic.Int32
	b, st, err := tier.Get(ctx, "k", fiveMin, constLoader("new", &calls))
	require.NoError(t, err)
	assert.Equal(t, StatusMiss, st)
	assert.Equal(t, "new", string(b))
}

func TestFreshness_Directive(t *testing.T) {
	assert.Equal(t, "public, max-age=300, stale-while-revalidate=3600", fiveMin.Directive())
}
