// Package cache holds normalized payloads keyed by upstream request
// signature and serves them stale-while-revalidate.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Entry is an immutable cached payload. Entries are replaced, never
// mutated.
type Entry struct {
	Key      string        `json:"key"`
	Payload  []byte        `json:"payload"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Fresh reports whether the entry's ttl has not elapsed at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.StoredAt.Add(e.TTL))
}

// Store is a key/value backend. Entries are kept for their ttl plus retain,
// after which the backend may drop them.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, e Entry, retain time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Freshness is the revalidation directive of one endpoint kind.
type Freshness struct {
	MaxAge               time.Duration `yaml:"max_age" json:"max_age"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate" json:"stale_while_revalidate"`
}

// Directive renders the freshness as a Cache-Control value.
func (f Freshness) Directive() string {
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int(f.MaxAge.Seconds()), int(f.StaleWhileRevalidate.Seconds()))
}
