package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/brogergvhs/showscrape/internal/ui"
)

// Status tells how a Get was served.
type Status string

const (
	StatusHit   Status = "hit"
	StatusStale Status = "stale"
	StatusMiss  Status = "miss"
)

// Loader produces a fresh payload. store=false returns the payload to the
// caller without writing it, e.g. for results that look like markup drift.
type Loader func(ctx context.Context) (payload []byte, store bool, err error)

// Observer receives cache outcomes, typically for metrics.
type Observer interface {
	CacheResult(tier string, status Status)
	RefreshResult(tier string, err error)
}

// Tier is one independently refreshed cache namespace. All waiters for a
// key share one in-flight load; a stale read never waits for the refresh it
// schedules.
type Tier struct {
	name  string
	store Store
	base  context.Context
	log   *ui.Logger
	obs   Observer
	now   func() time.Time

	group singleflight.Group

	mu             sync.Mutex
	flights        map[string]*flight
	refreshing     map[string]bool
	refreshedAfter time.Time

	bg sync.WaitGroup
}

// flight is the shared context of one foreground load. It is cancelled
// when its last waiter leaves. Background refreshes never own a flight;
// they run on their own context until done or until the tier's base
// context ends.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type TierOptions struct {
	Name     string
	Store    Store
	Logger   *ui.Logger
	Observer Observer
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewTier creates a tier whose background work is bound to base.
func NewTier(base context.Context, opts TierOptions) *Tier {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = ui.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tier{
		name:    opts.Name,
		store:   opts.Store,
		base:    base,
		log:     opts.Logger.With("tier", opts.Name),
		obs:     opts.Observer,
		now:     opts.Now,
		flights:    make(map[string]*flight),
		refreshing: make(map[string]bool),
	}
}

func (t *Tier) Name() string { return t.name }

// Get serves key under the freshness policy fr. A fresh entry is returned
// as is. A stale entry is returned immediately and one background refresh
// is scheduled. A miss waits for the shared load, or for ctx.
func (t *Tier) Get(ctx context.Context, key string, fr Freshness, load Loader) ([]byte, Status, error) {
	e, ok, err := t.store.Get(ctx, key)
	if err != nil {
		t.log.Warnf("cache read %s failed, treating as miss: %v", short(key), err)
		ok = false
	}

	if ok {
		if t.fresh(e) {
			t.observe(StatusHit)
			return e.Payload, StatusHit, nil
		}
		t.refresh(key, fr, load)
		t.observe(StatusStale)
		return e.Payload, StatusStale, nil
	}

	t.observe(StatusMiss)
	payload, err := t.await(ctx, key, fr, load)
	return payload, StatusMiss, err
}

// Put writes a payload directly.
func (t *Tier) Put(ctx context.Context, key string, payload []byte, fr Freshness) error {
	return t.store.Put(ctx, Entry{Key: key, Payload: payload, StoredAt: t.now(), TTL: fr.MaxAge}, fr.StaleWhileRevalidate)
}

// ForceRefresh marks every entry stored so far as stale. The next read of
// each key serves the old payload and refreshes it. Other tiers are not
// affected.
func (t *Tier) ForceRefresh() {
	t.mu.Lock()
	t.refreshedAfter = t.now()
	t.mu.Unlock()
	t.log.Infof("forced refresh of tier %s", t.name)
}

// Wait blocks until scheduled background refreshes have finished.
func (t *Tier) Wait() { t.bg.Wait() }

func (t *Tier) fresh(e Entry) bool {
	t.mu.Lock()
	cut := t.refreshedAfter
	t.mu.Unlock()
	if !cut.IsZero() && !e.StoredAt.After(cut) {
		return false
	}
	return e.Fresh(t.now())
}

func (t *Tier) observe(s Status) {
	if t.obs != nil {
		t.obs.CacheResult(t.name, s)
	}
}

type fillResult struct {
	payload []byte
}

// await joins (or starts) the flight for key and waits for its result or
// for ctx to end.
func (t *Tier) await(ctx context.Context, key string, fr Freshness, load Loader) ([]byte, error) {
	t.mu.Lock()
	f := t.flights[key]
	if f == nil {
		fctx, cancel := context.WithCancel(t.base)
		f = &flight{ctx: fctx, cancel: cancel}
		t.flights[key] = f
	}
	f.waiters++
	t.mu.Unlock()

	defer t.leave(key, f)

	ch := t.group.DoChan(key, func() (any, error) {
		// A load that finished between our store read and joining the
		// flight has already written the entry.
		if e, ok, err := t.store.Get(f.ctx, key); err == nil && ok && t.fresh(e) {
			return fillResult{payload: e.Payload}, nil
		}
		return t.fill(f.ctx, key, fr, load)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, res.Err
		}
		return res.Val.(fillResult).payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// leave drops one waiter. The last waiter cancels the flight, so
// abandoned loads stop fetching.
func (t *Tier) leave(key string, f *flight) {
	t.mu.Lock()
	f.waiters--
	done := f.waiters <= 0
	if done && t.flights[key] == f {
		delete(t.flights, key)
		t.group.Forget(key)
	}
	t.mu.Unlock()
	if done {
		f.cancel()
	}
}

// refresh schedules one background load for key unless a load for it is
// already in flight. A miss arriving while the refresh runs shares its
// result through the singleflight group; one arriving after it has
// finished starts its own load.
func (t *Tier) refresh(key string, fr Freshness, load Loader) {
	t.mu.Lock()
	if _, busy := t.flights[key]; busy || t.refreshing[key] {
		t.mu.Unlock()
		return
	}
	t.refreshing[key] = true
	t.bg.Add(1)
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(t.base)
	go func() {
		defer t.bg.Done()

		_, err, _ := t.group.Do(key, func() (any, error) {
			return t.fill(ctx, key, fr, load)
		})

		t.mu.Lock()
		delete(t.refreshing, key)
		t.mu.Unlock()
		cancel()

		if err != nil {
			t.log.Warnf("background refresh of %s failed, keeping stale entry: %v", short(key), err)
		}
		if t.obs != nil {
			t.obs.RefreshResult(t.name, err)
		}
	}()
}

// fill runs load and stores its result. A failed load leaves any existing
// entry untouched.
func (t *Tier) fill(ctx context.Context, key string, fr Freshness, load Loader) (fillResult, error) {
	payload, store, err := load(ctx)
	if err != nil {
		return fillResult{}, err
	}
	if store {
		e := Entry{Key: key, Payload: payload, StoredAt: t.now(), TTL: fr.MaxAge}
		if err := t.store.Put(context.WithoutCancel(ctx), e, fr.StaleWhileRevalidate); err != nil {
			t.log.Warnf("cache write %s failed: %v", short(key), err)
		}
	}
	return fillResult{payload: payload}, nil
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
