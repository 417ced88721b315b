package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/ident"
	"github.com/brogergvhs/showscrape/internal/markup"
)

// Catalog extracts genre and country anchors. Entries are keyed by slug;
// repeated anchors (menus are often rendered twice) collapse.
func Catalog(doc *markup.Document, p CatalogProfile) domain.Catalog {
	if doc == nil || doc.Document == nil {
		return domain.Catalog{Genres: []domain.CatalogEntry{}, Countries: []domain.CatalogEntry{}}
	}
	return domain.Catalog{
		Genres:    catalogEntries(doc, p.Genres),
		Countries: catalogEntries(doc, p.Countries),
	}
}

func catalogEntries(doc *markup.Document, selector string) []domain.CatalogEntry {
	out := []domain.CatalogEntry{}
	if selector == "" {
		return out
	}
	seen := map[string]bool{}
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		name := markup.Text(a)
		slug := ident.PathID(href)
		if name == "" || slug == "" || seen[slug] {
			return
		}
		seen[slug] = true
		out = append(out, domain.CatalogEntry{Name: name, Slug: slug})
	})
	return out
}
