package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/episodes"
	"github.com/brogergvhs/showscrape/internal/ident"
	"github.com/brogergvhs/showscrape/internal/markup"
)

// Detail extracts a DetailRecord. Every optional field is independent: a
// missing one is nil and never affects the others.
func Detail(doc *markup.Document, p DetailProfile, base string) domain.DetailRecord {
	rec := domain.DetailRecord{
		Genres:   []string{},
		Cast:     []string{},
		Episodes: []domain.EpisodeRef{},
	}
	if doc == nil || doc.Document == nil {
		return rec
	}

	root := doc.Selection
	if p.Root != "" {
		if r := doc.Find(p.Root).First(); r.Length() > 0 {
			root = r
		}
	}

	field := func(f Field) *string {
		return domain.StringPtr(p.Fields[f].Apply(root, base))
	}

	rec.Title, _ = p.Fields[FieldTitle].Apply(root, base)
	rec.AlternateTitle = field(FieldAltTitle)
	rec.ThumbnailURL = field(FieldImage)
	rec.Synopsis = field(FieldSynopsis)
	rec.Country = field(FieldCountry)
	rec.Status = field(FieldStatus)
	rec.ReleaseYear = field(FieldYear)
	rec.TotalEpisode = field(FieldTotal)
	rec.Duration = field(FieldDuration)
	rec.TrailerURL = field(FieldTrailer)

	if g := p.Genres.Apply(root); len(g) > 0 {
		rec.Genres = g
	}
	if c := p.Cast.Apply(root); len(c) > 0 {
		rec.Cast = c
	}
	rec.Episodes = Episodes(doc.Selection, p.Episodes, base)

	return rec
}

// Episodes extracts, de-duplicates and optionally orders episode anchors.
func Episodes(root *goquery.Selection, p EpisodeProfile, base string) []domain.EpisodeRef {
	refs := []domain.EpisodeRef{}
	if root == nil || p.Item == "" {
		return refs
	}

	root.Find(p.Item).Each(func(_ int, n *goquery.Selection) {
		href, ok := p.Href.Apply(n, base)
		if !ok {
			return
		}
		id := ident.PathID(href)
		if id == "" {
			return
		}

		title, _ := p.Title.Apply(n, base)
		num, numOK := p.Number.Apply(n, base)
		if !numOK {
			if parsed, ok := episodes.ParseNumber(id, title); ok {
				num, numOK = parsed.Label(), true
			}
		}
		if title == "" {
			title = id
			if numOK {
				title = "Episode " + num
			}
		}

		refs = append(refs, domain.EpisodeRef{
			Title:         title,
			EpisodeID:     id,
			TimeMarker:    domain.StringPtr(p.Time.Apply(n, base)),
			EpisodeNumber: domain.StringPtr(num, numOK),
		})
	})

	refs = episodes.Dedupe(refs)
	if p.Sort {
		episodes.Sort(refs)
	}
	return refs
}
