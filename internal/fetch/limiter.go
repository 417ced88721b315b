package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterSettings configures token-bucket style rate limiting per host.
type RateLimiterSettings struct {
	Requests int
	Window   time.Duration
}

func (s RateLimiterSettings) enabled() bool { return s.Requests > 0 && s.Window > 0 }

// DomainLimiter enforces per-host politeness: a minimum delay between
// requests and an optional token bucket. Hosts may override the default
// bucket.
type DomainLimiter struct {
	delay time.Duration
	rate  RateLimiterSettings

	mu        sync.Mutex
	last      map[string]time.Time
	limiters  map[string]*rate.Limiter
	overrides map[string]RateLimiterSettings
}

// NewDomainLimiter creates a limiter with per-host delay and optional rate limiting.
func NewDomainLimiter(delay time.Duration, rateCfg RateLimiterSettings) *DomainLimiter {
	return &DomainLimiter{
		delay:     delay,
		rate:      rateCfg,
		last:      make(map[string]time.Time),
		limiters:  make(map[string]*rate.Limiter),
		overrides: make(map[string]RateLimiterSettings),
	}
}

// SetHostRate overrides the bucket for one host.
func (d *DomainLimiter) SetHostRate(host string, s RateLimiterSettings) {
	if d == nil || host == "" {
		return
	}
	host = strings.ToLower(host)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[host] = s
	delete(d.limiters, host)
}

// Wait blocks until politeness constraints for the host are satisfied or
// ctx is done.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	var sleep time.Duration
	now := time.Now()

	d.mu.Lock()
	if d.delay > 0 {
		if last, ok := d.last[host]; ok {
			if rest := last.Add(d.delay).Sub(now); rest > 0 {
				sleep = rest
			}
		}
	}
	limiter := d.ensureLimiterLocked(host)
	d.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.last[host] = time.Now()
	d.mu.Unlock()
	return nil
}

func (d *DomainLimiter) ensureLimiterLocked(host string) *rate.Limiter {
	if limiter, ok := d.limiters[host]; ok {
		return limiter
	}
	settings := d.rate
	if o, ok := d.overrides[host]; ok {
		settings = o
	}
	if !settings.enabled() {
		return nil
	}
	interval := settings.Window / time.Duration(settings.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), settings.Requests)
	d.limiters[host] = limiter
	return limiter
}
