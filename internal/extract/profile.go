package extract

import "github.com/brogergvhs/showscrape/internal/markup"

// ListProfile extracts listing items from index, category and search pages.
type ListProfile struct {
	// Item selects one node per list entry.
	Item   string
	Fields map[Field]Rule
	// MinItems is the item count below which a page is treated as markup
	// drift rather than a genuinely empty category. Zero disables the check.
	MinItems int
	// EmptyMarker matches the upstream's own "nothing found" markup. When it
	// is present a short page is a genuine empty result, not drift.
	EmptyMarker string
}

// Drifted reports whether a page yielding count items looks like markup
// drift: fewer items than expected and no explicit empty-state marker.
func (p ListProfile) Drifted(doc *markup.Document, count int) bool {
	if p.MinItems <= 0 || count >= p.MinItems {
		return false
	}
	if p.EmptyMarker != "" && doc != nil && doc.Document != nil && doc.Find(p.EmptyMarker).Length() > 0 {
		return false
	}
	return true
}

// DetailProfile extracts the series-level record of a detail page.
type DetailProfile struct {
	// Root scopes all field rules; empty means the whole document.
	Root     string
	Fields   map[Field]Rule
	Genres   ListRule
	Cast     ListRule
	Episodes EpisodeProfile
}

// EpisodeProfile extracts the episode/chapter anchors of a detail page.
type EpisodeProfile struct {
	Item   string
	Title  Rule
	Href   Rule
	Time   Rule
	Number Rule
	// Sort orders episodes by parsed number instead of document order.
	Sort bool
}

// CatalogProfile extracts the browse facets of a source.
type CatalogProfile struct {
	Genres    string
	Countries string
}
