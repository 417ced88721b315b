// Package engine orchestrates fetch, extraction and caching for every
// registered source. Its exported operations are the boundary callers see:
// they return normalized payloads or a *Failure, never a panic.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/brogergvhs/showscrape/internal/cache"
	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/fetch"
	"github.com/brogergvhs/showscrape/internal/markup"
	"github.com/brogergvhs/showscrape/internal/metrics"
	"github.com/brogergvhs/showscrape/internal/sources"
	"github.com/brogergvhs/showscrape/internal/ui"
)

const (
	TierVolatile = "volatile"
	TierCatalog  = "catalog"
)

const (
	DefaultFanOut   = 4
	DefaultMaxPages = 20
)

// Fetcher retrieves one upstream document with a named header profile.
// *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url, profile string) (*fetch.Response, error)
}

// DefaultFreshness is the revalidation policy per endpoint kind: minutes
// for volatile feeds, hours to days for near-static metadata.
func DefaultFreshness() map[sources.Kind]cache.Freshness {
	return map[sources.Kind]cache.Freshness{
		sources.KindListing: {MaxAge: 5 * time.Minute, StaleWhileRevalidate: time.Hour},
		sources.KindSearch:  {MaxAge: 10 * time.Minute, StaleWhileRevalidate: time.Hour},
		sources.KindHome:    {MaxAge: 5 * time.Minute, StaleWhileRevalidate: 30 * time.Minute},
		sources.KindSuggest: {MaxAge: time.Minute, StaleWhileRevalidate: 10 * time.Minute},
		sources.KindDetail:  {MaxAge: 6 * time.Hour, StaleWhileRevalidate: 24 * time.Hour},
		sources.KindCatalog: {MaxAge: 24 * time.Hour, StaleWhileRevalidate: 7 * 24 * time.Hour},
	}
}

type Options struct {
	Registry *sources.Registry
	Fetcher  Fetcher

	// VolatileStore backs listing, search, home and suggest results;
	// CatalogStore backs detail and catalog results. Nil means in-memory.
	VolatileStore cache.Store
	CatalogStore  cache.Store
	// Freshness overrides DefaultFreshness per kind.
	Freshness map[sources.Kind]cache.Freshness

	Retry    RetryOptions
	FanOut   int
	MaxPages int

	Metrics *metrics.Metrics
	Logger  *ui.Logger
	// Now overrides the cache clock in tests.
	Now func() time.Time
}

type Engine struct {
	registry  *sources.Registry
	fetcher   Fetcher
	tiers     map[string]*cache.Tier
	freshness map[sources.Kind]cache.Freshness
	retry     RetryOptions
	fanOut    int
	maxPages  int
	metrics   *metrics.Metrics
	log       *ui.Logger

	base   context.Context
	cancel context.CancelFunc
}

// New builds an engine. Configuration errors are reported here and never
// at request time.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil || len(opts.Registry.IDs()) == 0 {
		return nil, errors.New("engine: no sources registered")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("engine: no fetcher")
	}
	if hp, ok := opts.Fetcher.(interface{ HasProfile(string) bool }); ok {
		if err := opts.Registry.Validate(hp.HasProfile); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	} else if err := opts.Registry.Validate(nil); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	if opts.Logger == nil {
		opts.Logger = ui.NopLogger()
	}
	if opts.FanOut <= 0 {
		opts.FanOut = DefaultFanOut
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	fr := DefaultFreshness()
	for k, v := range opts.Freshness {
		if v.MaxAge > 0 {
			fr[k] = v
		}
	}

	base, cancel := context.WithCancel(context.Background())
	var obs cache.Observer
	if opts.Metrics != nil {
		obs = opts.Metrics
	}
	tier := func(name string, st cache.Store) *cache.Tier {
		return cache.NewTier(base, cache.TierOptions{
			Name:     name,
			Store:    st,
			Logger:   opts.Logger,
			Observer: obs,
			Now:      opts.Now,
		})
	}

	return &Engine{
		registry: opts.Registry,
		fetcher:  opts.Fetcher,
		tiers: map[string]*cache.Tier{
			TierVolatile: tier(TierVolatile, opts.VolatileStore),
			TierCatalog:  tier(TierCatalog, opts.CatalogStore),
		},
		freshness: fr,
		retry:     opts.Retry.withDefaults(),
		fanOut:    opts.FanOut,
		maxPages:  opts.MaxPages,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		base:      base,
		cancel:    cancel,
	}, nil
}

// Close cancels background refreshes and waits for them to stop.
func (e *Engine) Close() {
	e.cancel()
	for _, t := range e.tiers {
		t.Wait()
	}
}

// Wait blocks until scheduled background refreshes have finished.
func (e *Engine) Wait() {
	for _, t := range e.tiers {
		t.Wait()
	}
}

// Freshness returns the revalidation directive of an endpoint kind.
func (e *Engine) Freshness(kind sources.Kind) cache.Freshness {
	return e.freshness[kind]
}

// TierOf names the cache tier serving kind.
func TierOf(kind sources.Kind) string {
	switch kind {
	case sources.KindDetail, sources.KindCatalog:
		return TierCatalog
	default:
		return TierVolatile
	}
}

// ForceRefresh marks every entry of one tier stale. The other tier is
// untouched.
func (e *Engine) ForceRefresh(tier string) error {
	t, ok := e.tiers[tier]
	if !ok {
		return invalid("", "unknown cache tier %q", tier)
	}
	t.ForceRefresh()
	return nil
}

// Tiers lists the cache tier names.
func (e *Engine) Tiers() []string {
	names := make([]string, 0, len(e.tiers))
	for n := range e.tiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sources describes every registered source.
func (e *Engine) Sources() []domain.SourceInfo {
	out := make([]domain.SourceInfo, 0, len(e.registry.IDs()))
	for _, id := range e.registry.IDs() {
		s, _ := e.registry.Get(id)
		info := domain.SourceInfo{
			ID:      s.ID,
			Name:    s.Name,
			BaseURL: s.BaseURL,
			Kinds:   []string{string(sources.KindListing), string(sources.KindSearch), string(sources.KindDetail)},
		}
		if len(s.Home) > 0 {
			info.Kinds = append(info.Kinds, string(sources.KindHome))
			for _, f := range s.Home {
				info.Feeds = append(info.Feeds, f.Name)
			}
		}
		if s.Catalog != nil {
			info.Kinds = append(info.Kinds, string(sources.KindCatalog))
		}
		if s.Suggest != nil {
			info.Kinds = append(info.Kinds, string(sources.KindSuggest))
		}
		out = append(out, info)
	}
	return out
}

func (e *Engine) source(id string) (*sources.Source, error) {
	s, ok := e.registry.Get(id)
	if !ok {
		return nil, &Failure{Code: CodeUnknownSource, Source: id, Message: fmt.Sprintf("source %q is not registered", id)}
	}
	return s, nil
}

// guard is deferred by every exported operation. It turns panics and
// internal errors into a *Failure and counts it.
func (e *Engine) guard(op, source string, err *error) {
	if r := recover(); r != nil {
		e.log.Errorf("panic in %s(%s): %v\n%s", op, source, r, debug.Stack())
		*err = &Failure{Code: CodeInternal, Source: source, Message: "internal error", Err: fmt.Errorf("panic: %v", r)}
	}
	if *err == nil {
		return
	}
	f := classify(source, *err)
	if f.Code == CodeInternal && f.Err != nil {
		e.log.Errorf("%s(%s): %v", op, source, f.Err)
	}
	e.metrics.Failure(source, string(f.Code))
	*err = f
}

// parse builds the document of a fetched page. A body the tokenizer
// rejects reads as an empty page; it is logged, not failed.
func (e *Engine) parse(src *sources.Source, kind sources.Kind, resp *fetch.Response) *markup.Document {
	doc := markup.Parse(resp.Body)
	if doc.ParseFailed() {
		e.log.With("source", src.ID, "kind", string(kind)).
			Warnf("unparseable body from %s (%d bytes), treating as empty", resp.URL, len(resp.Body))
	}
	return doc
}

// drift reports and counts a page whose rules matched less than expected.
func (e *Engine) drift(src *sources.Source, kind sources.Kind, target string, count int) {
	e.log.With("source", src.ID, "kind", string(kind)).
		Warnf("possible markup drift on %s: %d items extracted", target, count)
	e.metrics.ShapeDrift(src.ID, string(kind))
}
