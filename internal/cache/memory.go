package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Expired entries are dropped lazily
// on read and by Sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	e       Entry
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	me, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if !me.expires.IsZero() && !m.now().Before(me.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(me.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return Entry{}, false, nil
	}
	return me.e, true, nil
}

func (m *MemoryStore) Put(_ context.Context, e Entry, retain time.Duration) error {
	var expires time.Time
	if e.TTL > 0 {
		expires = e.StoredAt.Add(e.TTL + retain)
	}
	m.mu.Lock()
	m.entries[e.Key] = memEntry{e: e, expires: expires}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, me := range m.entries {
		if !me.expires.IsZero() && !now.Before(me.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SweepEvery calls Sweep every interval until ctx is done. onSweep, if set,
// receives the number removed and the number left after each pass.
func (m *MemoryStore) SweepEvery(ctx context.Context, every time.Duration, onSweep func(removed, left int)) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := m.Sweep()
			if onSweep != nil {
				onSweep(n, m.Len())
			}
		}
	}
}
