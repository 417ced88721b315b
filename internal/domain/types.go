// Package domain holds the normalized payloads produced by the extraction
// engine. Optional values are pointers and encode as JSON null when absent.
package domain

import "encoding/json"

// ListingItem is one entry of an index, category or search-results page.
//
// RawID addresses the specific episode/chapter snapshot that was linked,
// CanonicalID the parent series.
type ListingItem struct {
	Title         string  `json:"title"`
	CanonicalID   string  `json:"canonical_id"`
	RawID         string  `json:"raw_id"`
	ImageURL      *string `json:"image"`
	EpisodeMarker *string `json:"episode"`
	TimeMarker    *string `json:"time"`
	RatingValue   *string `json:"rating"`
}

// Pagination describes the pager of a listing page. MaxPage is never below 1.
type Pagination struct {
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
	MaxPage int  `json:"max_page"`
}

// DefaultPagination is the state of a page without pager markup.
func DefaultPagination() Pagination {
	return Pagination{MaxPage: 1}
}

type ListingResult struct {
	Items      []ListingItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

type EpisodeRef struct {
	Title         string  `json:"title"`
	EpisodeID     string  `json:"episode_id"`
	TimeMarker    *string `json:"time"`
	EpisodeNumber *string `json:"episode"`
}

// DetailRecord is the series-level record of one title.
type DetailRecord struct {
	Title          string       `json:"title"`
	AlternateTitle *string      `json:"other_name"`
	ThumbnailURL   *string      `json:"thumbnail"`
	Synopsis       *string      `json:"synopsis"`
	Country        *string      `json:"country"`
	Status         *string      `json:"status"`
	ReleaseYear    *string      `json:"release_year"`
	TotalEpisode   *string      `json:"total_episode"`
	Duration       *string      `json:"duration"`
	Genres         []string     `json:"genres"`
	Cast           []string     `json:"casts"`
	TrailerURL     *string      `json:"trailer"`
	Episodes       []EpisodeRef `json:"episodes"`
}

// Empty reports whether nothing at all was extracted.
func (d DetailRecord) Empty() bool {
	return d.Title == "" && d.ThumbnailURL == nil && d.Synopsis == nil && len(d.Episodes) == 0
}

type CatalogEntry struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Catalog lists the near-static browse facets of a source.
type Catalog struct {
	Genres    []CatalogEntry `json:"genres"`
	Countries []CatalogEntry `json:"countries"`
}

// HomeFeeds is the partial-success aggregate of a source's home feeds.
// Failed maps a feed name to the failure code that prevented it.
type HomeFeeds struct {
	Feeds  map[string]ListingResult `json:"feeds"`
	Failed map[string]string        `json:"failed,omitempty"`
}

// PageSet is a multi-page listing walk. Items keep page order; Failed maps
// a page number to the failure code that prevented it.
type PageSet struct {
	Items      []ListingItem  `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Pages      []int          `json:"pages"`
	Failed     map[int]string `json:"failed,omitempty"`
}

// Suggestions is the answer of an AJAX suggest endpoint: the items parsed
// from its HTML fragment plus the upstream JSON as received.
type Suggestions struct {
	Items []ListingItem   `json:"items"`
	Raw   json.RawMessage `json:"raw"`
}

// SourceInfo describes a registered source and the endpoint kinds it serves.
type SourceInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	BaseURL string   `json:"base_url"`
	Kinds   []string `json:"kinds"`
	Feeds   []string `json:"feeds,omitempty"`
}

// StringPtr returns a pointer to s, or nil when ok is false.
func StringPtr(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
