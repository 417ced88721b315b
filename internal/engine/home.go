package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/sources"
)

// Home fetches every home feed of a source concurrently. Each feed is
// cached on its own; a failed feed is listed in Failed and the rest are
// still returned. Home fails only when every feed failed.
func (e *Engine) Home(ctx context.Context, sourceID string) (home domain.HomeFeeds, err error) {
	defer e.guard("home", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return home, err
	}
	if len(src.Home) == 0 {
		return home, invalid(src.ID, "source has no home feeds")
	}

	var (
		mu    sync.Mutex
		feeds = make(map[string]domain.ListingResult, len(src.Home))
		errs  = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for _, f := range src.Home {
		g.Go(func() error {
			q := withFilters(query.New().WithPage(1), f.Filters)
			res, err := e.list(gctx, src, sources.KindHome, f.Endpoint, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[f.Name] = err
				return nil
			}
			feeds[f.Name] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return home, err
	}

	home = domain.HomeFeeds{Feeds: feeds}
	for _, f := range src.Home {
		ferr, failed := errs[f.Name]
		if !failed {
			continue
		}
		if len(feeds) == 0 {
			return domain.HomeFeeds{}, ferr
		}
		if home.Failed == nil {
			home.Failed = map[string]string{}
		}
		code := classify(src.ID, ferr).Code
		home.Failed[f.Name] = string(code)
		e.log.With("source", src.ID, "feed", f.Name).Warnf("home feed failed: %v", ferr)
	}
	return home, nil
}
