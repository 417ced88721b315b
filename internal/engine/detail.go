package engine

import (
	"context"
	"fmt"
	"net/url"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/extract"
	"github.com/brogergvhs/showscrape/internal/sources"
)

// Detail returns the series record of a canonical id. A raw episode id is
// accepted and canonicalized first.
func (e *Engine) Detail(ctx context.Context, sourceID, id string) (rec domain.DetailRecord, err error) {
	defer e.guard("detail", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return rec, err
	}
	target, err := src.DetailURL(src.Canonicalize(id))
	if err != nil {
		return rec, invalid(src.ID, "%v", err)
	}

	return cached(ctx, e, src, sources.KindDetail, target, func(ctx context.Context) (domain.DetailRecord, bool, error) {
		resp, err := e.get(ctx, src, target, "")
		if err != nil {
			return domain.DetailRecord{}, false, err
		}
		rec := extract.Detail(e.parse(src, sources.KindDetail, resp), src.Detail.Profile, resp.URL)
		if rec.Empty() {
			e.drift(src, sources.KindDetail, target, 0)
			return rec, false, nil
		}
		return rec, true, nil
	})
}

// Catalog returns the genre and country facets of a source.
func (e *Engine) Catalog(ctx context.Context, sourceID string) (cat domain.Catalog, err error) {
	defer e.guard("catalog", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return cat, err
	}
	if src.Catalog == nil {
		return cat, invalid(src.ID, "source has no catalog")
	}
	target, err := resolve(src.BaseURL, src.Catalog.Path)
	if err != nil {
		return cat, err
	}

	return cached(ctx, e, src, sources.KindCatalog, target, func(ctx context.Context) (domain.Catalog, bool, error) {
		resp, err := e.get(ctx, src, target, "")
		if err != nil {
			return domain.Catalog{}, false, err
		}
		cat := extract.Catalog(e.parse(src, sources.KindCatalog, resp), src.Catalog.Profile)
		if len(cat.Genres) == 0 && len(cat.Countries) == 0 {
			e.drift(src, sources.KindCatalog, target, 0)
			return cat, false, nil
		}
		return cat, true, nil
	})
}

func resolve(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	return u.ResolveReference(&url.URL{Path: path}).String(), nil
}
