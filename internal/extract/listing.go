package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/ident"
	"github.com/brogergvhs/showscrape/internal/markup"
)

// Canonicalizer maps a raw id to its series id.
type Canonicalizer func(raw string) string

// Listing emits one item per node matched by the profile's Item selector.
// Nodes yielding no title or no raw id are decorative markup and are
// skipped. The returned slice is never nil.
func Listing(doc *markup.Document, p ListProfile, base string, canon Canonicalizer) []domain.ListingItem {
	items := []domain.ListingItem{}
	if doc == nil || doc.Document == nil || p.Item == "" {
		return items
	}
	if canon == nil {
		canon = ident.Canonicalize
	}

	doc.Find(p.Item).Each(func(_ int, n *goquery.Selection) {
		it, ok := listingItem(n, p, base, canon)
		if ok {
			items = append(items, it)
		}
	})
	return items
}

func listingItem(n *goquery.Selection, p ListProfile, base string, canon Canonicalizer) (domain.ListingItem, bool) {
	title, ok := p.Fields[FieldTitle].Apply(n, base)
	if !ok {
		return domain.ListingItem{}, false
	}
	raw, ok := p.Fields[FieldRawID].Apply(n, base)
	if !ok {
		return domain.ListingItem{}, false
	}

	img, imgOK := p.Fields[FieldImage].Apply(n, base)
	if !imgOK {
		img, imgOK = AnyImage(n, base)
	}

	return domain.ListingItem{
		Title:         title,
		CanonicalID:   canon(raw),
		RawID:         raw,
		ImageURL:      domain.StringPtr(img, imgOK),
		EpisodeMarker: domain.StringPtr(p.Fields[FieldEpisode].Apply(n, base)),
		TimeMarker:    domain.StringPtr(p.Fields[FieldTime].Apply(n, base)),
		RatingValue:   domain.StringPtr(p.Fields[FieldRating].Apply(n, base)),
	}, true
}
