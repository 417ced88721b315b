package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/brogergvhs/showscrape/internal/fetch"
	"github.com/brogergvhs/showscrape/internal/sources"
)

// RetryOptions controls the single retry of a failed idempotent GET.
type RetryOptions struct {
	// Retries is the number of extra attempts; 0 means the default of one.
	// Negative disables retrying.
	Retries         int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Retries == 0 {
		o.Retries = 1
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 300 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 2 * time.Second
	}
	return o
}

func (o RetryOptions) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.InitialInterval
	b.MaxInterval = o.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.Retries)), ctx)
}

// get fetches target, retrying transport failures that may be transient:
// timeouts, connection errors, 5xx and 429. Anything else fails at once.
func (e *Engine) get(ctx context.Context, src *sources.Source, target, profile string) (*fetch.Response, error) {
	if profile == "" {
		profile = src.HeaderProfile
	}

	var resp *fetch.Response
	op := func() error {
		start := time.Now()
		r, err := e.fetcher.Fetch(ctx, target, profile)
		e.metrics.ObserveFetch(src.ID, fetchOutcome(err), time.Since(start))
		if err != nil {
			if te, ok := fetch.AsTransportError(err); ok && te.Retryable() {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.log.With("source", src.ID).Warnf("retrying %s in %s: %v", target, wait.Round(time.Millisecond), err)
	}

	if err := backoff.RetryNotify(op, e.retry.backOff(ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

func fetchOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	te, ok := fetch.AsTransportError(err)
	switch {
	case !ok:
		return "error"
	case te.Canceled():
		return "canceled"
	case te.Timeout:
		return "timeout"
	case te.Status != 0:
		return "status"
	default:
		return "error"
	}
}
