// Package sources declares the upstream sites the engine understands. A
// source is data: URLs, header profile name, query dialects and extractor
// profiles per page kind.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/brogergvhs/showscrape/internal/extract"
	"github.com/brogergvhs/showscrape/internal/ident"
	"github.com/brogergvhs/showscrape/internal/paginate"
	"github.com/brogergvhs/showscrape/internal/query"
)

// Kind is an endpoint kind. Each kind has its own freshness directive.
type Kind string

const (
	KindListing Kind = "listing"
	KindSearch  Kind = "search"
	KindDetail  Kind = "detail"
	KindHome    Kind = "home"
	KindCatalog Kind = "catalog"
	KindSuggest Kind = "suggest"
)

// Kinds lists every endpoint kind.
var Kinds = []Kind{KindListing, KindSearch, KindDetail, KindHome, KindCatalog, KindSuggest}

// ListEndpoint is a paginated list page: listing, search or a home feed.
type ListEndpoint struct {
	Dialect query.Dialect
	Profile extract.ListProfile
	Pager   paginate.Rule
}

// DetailEndpoint addresses a series page by canonical id.
type DetailEndpoint struct {
	// Path contains "{id}".
	Path    string
	Profile extract.DetailProfile
}

// Feed is one home-page feed: a list endpoint with preset filters.
type Feed struct {
	Name     string
	Endpoint ListEndpoint
	Filters  map[query.Filter]string
}

type CatalogEndpoint struct {
	Path    string
	Profile extract.CatalogProfile
}

// SuggestEndpoint is an AJAX endpoint answering with a JSON object that
// carries an HTML fragment.
type SuggestEndpoint struct {
	Dialect       query.Dialect
	HeaderProfile string
	// StatusField must be true in the response; empty skips the check.
	StatusField string
	// HTMLField holds the markup fragment.
	HTMLField string
	Profile   extract.ListProfile
}

type Source struct {
	ID      string
	Name    string
	BaseURL string
	// HeaderProfile names the fetch header profile used for every page.
	HeaderProfile string
	// CanonicalTokens are suffix tokens stripped in addition to "episode",
	// e.g. "chapter".
	CanonicalTokens []string

	Listing ListEndpoint
	Search  ListEndpoint
	Detail  DetailEndpoint
	Home    []Feed
	Catalog *CatalogEndpoint
	Suggest *SuggestEndpoint
}

// Canonicalize maps a raw id of this source to its series id.
func (s *Source) Canonicalize(raw string) string {
	return ident.CanonicalizeWith(raw, s.CanonicalTokens...)
}

// DetailURL resolves the detail page of a canonical id.
func (s *Source) DetailURL(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("invalid id %q", id)
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", s.BaseURL, err)
	}
	p := strings.ReplaceAll(s.Detail.Path, "{id}", url.PathEscape(id))
	return base.ResolveReference(&url.URL{Path: p}).String(), nil
}

// Validate checks that the source can serve requests. hasProfile reports
// whether a header profile name is configured.
func (s *Source) Validate(hasProfile func(string) bool) error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("missing id"))
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", s.BaseURL))
	}
	if s.HeaderProfile == "" {
		errs = append(errs, errors.New("missing header profile"))
	} else if hasProfile != nil && !hasProfile(s.HeaderProfile) {
		errs = append(errs, fmt.Errorf("header profile %q is not configured", s.HeaderProfile))
	}
	if s.Suggest != nil && s.Suggest.HeaderProfile != "" && hasProfile != nil && !hasProfile(s.Suggest.HeaderProfile) {
		errs = append(errs, fmt.Errorf("suggest header profile %q is not configured", s.Suggest.HeaderProfile))
	}
	if s.Listing.Profile.Item == "" {
		errs = append(errs, errors.New("listing profile has no item selector"))
	}
	if s.Search.Profile.Item == "" {
		errs = append(errs, errors.New("search profile has no item selector"))
	}
	if !strings.Contains(s.Detail.Path, "{id}") {
		errs = append(errs, errors.New("detail path has no {id} placeholder"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("source %q: %w", s.ID, err)
	}
	return nil
}

// Registry holds the sources known to an engine.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*Source)}
}

func (r *Registry) Register(s *Source) error {
	if s == nil || s.ID == "" {
		return errors.New("register: source without id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sources[s.ID]; dup {
		return fmt.Errorf("register: duplicate source %q", s.ID)
	}
	r.sources[s.ID] = s
	return nil
}

func (r *Registry) Get(id string) (*Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(id))]
	return s, ok
}

// IDs returns registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every source.
func (r *Registry) Validate(hasProfile func(string) bool) error {
	var errs []error
	for _, id := range r.IDs() {
		s, _ := r.Get(id)
		if err := s.Validate(hasProfile); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
