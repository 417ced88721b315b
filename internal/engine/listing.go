package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/showscrape/internal/cache"
	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/extract"
	"github.com/brogergvhs/showscrape/internal/paginate"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/sources"
)

// Listing returns one page of a source's index. Filters absent from the
// map are not sent; a filter present with an empty value is.
func (e *Engine) Listing(ctx context.Context, sourceID string, page int, filters map[query.Filter]string) (res domain.ListingResult, err error) {
	defer e.guard("listing", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return res, err
	}
	if page < 1 {
		return res, invalid(src.ID, "page must be at least 1, got %d", page)
	}
	return e.list(ctx, src, sources.KindListing, src.Listing, withFilters(query.New().WithPage(page), filters))
}

// Search runs a free-text search.
func (e *Engine) Search(ctx context.Context, sourceID, text string, page int) (res domain.ListingResult, err error) {
	defer e.guard("search", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return res, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return res, invalid(src.ID, "search text is empty")
	}
	if page < 1 {
		return res, invalid(src.ID, "page must be at least 1, got %d", page)
	}
	return e.list(ctx, src, sources.KindSearch, src.Search, query.New().WithText(text).WithPage(page))
}

// ListingPages fetches the listing pages from..to concurrently and joins
// their items in page order. A failed page does not stop the others; it is
// reported in Failed. The walk fails only when every page failed.
func (e *Engine) ListingPages(ctx context.Context, sourceID string, from, to int, filters map[query.Filter]string) (set domain.PageSet, err error) {
	defer e.guard("listing_pages", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return set, err
	}
	if from < 1 || to < from {
		return set, invalid(src.ID, "invalid page range %d..%d", from, to)
	}
	if n := to - from + 1; n > e.maxPages {
		return set, invalid(src.ID, "page range spans %d pages, limit is %d", n, e.maxPages)
	}

	results := make([]domain.ListingResult, to-from+1)
	errs := make([]error, to-from+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for p := from; p <= to; p++ {
		g.Go(func() error {
			i := p - from
			results[i], errs[i] = e.list(gctx, src, sources.KindListing, src.Listing, withFilters(query.New().WithPage(p), filters))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return set, err
	}

	set = domain.PageSet{Items: []domain.ListingItem{}, Pages: []int{}, Pagination: domain.DefaultPagination()}
	var first error
	for i, r := range results {
		p := from + i
		if errs[i] != nil {
			if first == nil {
				first = errs[i]
			}
			if set.Failed == nil {
				set.Failed = map[int]string{}
			}
			set.Failed[p] = string(classify(src.ID, errs[i]).Code)
			continue
		}
		set.Items = append(set.Items, r.Items...)
		set.Pages = append(set.Pages, p)
		if p == from {
			set.Pagination.HasPrev = r.Pagination.HasPrev
		}
		if p == to {
			set.Pagination.HasNext = r.Pagination.HasNext
		}
		set.Pagination.MaxPage = max(set.Pagination.MaxPage, r.Pagination.MaxPage)
	}
	if len(set.Pages) == 0 {
		return domain.PageSet{}, first
	}
	return set, nil
}

func withFilters(q query.SearchQuery, filters map[query.Filter]string) query.SearchQuery {
	for f, v := range filters {
		q = q.WithFilter(f, v)
	}
	return q
}

// list serves one list-shaped page through the cache.
func (e *Engine) list(ctx context.Context, src *sources.Source, kind sources.Kind, ep sources.ListEndpoint, q query.SearchQuery) (domain.ListingResult, error) {
	u, err := query.Build(src.BaseURL, ep.Dialect, q)
	if err != nil {
		return domain.ListingResult{}, fmt.Errorf("build %s url: %w", kind, err)
	}
	target := u.String()

	return cached(ctx, e, src, kind, target, func(ctx context.Context) (domain.ListingResult, bool, error) {
		resp, err := e.get(ctx, src, target, "")
		if err != nil {
			return domain.ListingResult{}, false, err
		}
		doc := e.parse(src, kind, resp)
		items := extract.Listing(doc, ep.Profile, resp.URL, src.Canonicalize)
		res := domain.ListingResult{
			Items:      items,
			Pagination: paginate.Resolve(doc, ep.Pager),
		}
		if ep.Profile.Drifted(doc, len(items)) {
			e.drift(src, kind, target, len(items))
			return res, false, nil
		}
		return res, true, nil
	})
}

// cached serves target from the tier of kind. load runs on a miss, or in
// the background for a stale entry; store=false keeps its result out of the
// cache.
func cached[T any](ctx context.Context, e *Engine, src *sources.Source, kind sources.Kind, target string, load func(context.Context) (T, bool, error)) (T, error) {
	var out T
	tier := e.tiers[TierOf(kind)]
	key := cache.Key(string(kind), target)

	payload, status, err := tier.Get(ctx, key, e.freshness[kind], func(ctx context.Context) (_ []byte, _ bool, err error) {
		// Loads run on cache goroutines, out of reach of guard.
		defer func() {
			if r := recover(); r != nil {
				e.log.Errorf("panic loading %s %s: %v\n%s", kind, target, r, debug.Stack())
				err = &Failure{Code: CodeInternal, Source: src.ID, Message: "internal error", Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, store, err := load(ctx)
		if err != nil {
			return nil, false, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false, fmt.Errorf("encode %s: %w", kind, err)
		}
		return b, store, nil
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", kind, err)
	}
	e.log.Debugf("%s %s %s: %s", src.ID, kind, target, status)
	return out, nil
}
