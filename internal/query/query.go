// Package query converts structured search/filter requests into an
// upstream site's URL dialect.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Filter names a search facet.
type Filter string

const (
	FilterText    Filter = "text"
	FilterCountry Filter = "country"
	FilterGenre   Filter = "genre"
	FilterYear    Filter = "year"
	FilterSort    Filter = "sort"
)

// Filters is the order in which filters are serialized.
var Filters = []Filter{FilterText, FilterCountry, FilterGenre, FilterYear, FilterSort}

// SearchQuery is an immutable request. The zero value has no filters and
// page 1. Setters return modified copies; an unset filter is distinct from
// one set to the empty string.
type SearchQuery struct {
	values  map[Filter]string
	page    int
	pageSet bool
}

// New returns an empty query for page 1.
func New() SearchQuery { return SearchQuery{} }

func (q SearchQuery) with(f Filter, v string) SearchQuery {
	vals := make(map[Filter]string, len(q.values)+1)
	for k, x := range q.values {
		vals[k] = x
	}
	vals[f] = v
	q.values = vals
	return q
}

func (q SearchQuery) WithText(s string) SearchQuery    { return q.with(FilterText, s) }
func (q SearchQuery) WithCountry(s string) SearchQuery { return q.with(FilterCountry, s) }
func (q SearchQuery) WithGenre(s string) SearchQuery   { return q.with(FilterGenre, s) }
func (q SearchQuery) WithYear(s string) SearchQuery    { return q.with(FilterYear, s) }
func (q SearchQuery) WithSort(s string) SearchQuery    { return q.with(FilterSort, s) }

// WithFilter sets an arbitrary filter by name.
func (q SearchQuery) WithFilter(f Filter, v string) SearchQuery { return q.with(f, v) }

// WithPage sets the page. Values below 1 are kept as-is; callers validate.
func (q SearchQuery) WithPage(p int) SearchQuery {
	q.page, q.pageSet = p, true
	return q
}

// Get reports a filter's value and whether it was set.
func (q SearchQuery) Get(f Filter) (string, bool) {
	v, ok := q.values[f]
	return v, ok
}

// Page returns the requested page; the zero query is page 1.
func (q SearchQuery) Page() int {
	if !q.pageSet {
		return 1
	}
	return q.page
}

// Present returns the set, non-empty filters.
func (q SearchQuery) Present() map[Filter]string {
	out := make(map[Filter]string, len(q.values))
	for k, v := range q.values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func (q SearchQuery) String() string {
	keys := make([]string, 0, len(q.values))
	for k := range q.values {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, q.values[Filter(k)]))
	}
	parts = append(parts, "page="+strconv.Itoa(q.Page()))
	return strings.Join(parts, " ")
}
