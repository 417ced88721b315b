package query

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Dialect describes how one upstream endpoint spells a SearchQuery.
type Dialect struct {
	// Path is the endpoint path, resolved against the base URL.
	Path string
	// Params maps filters to query parameter names. Filters without a
	// mapping are not sent.
	Params map[Filter]string
	// PageParam carries the page number as a query parameter.
	PageParam string
	// PagePath carries the page number as a path suffix, e.g. "/page/{page}".
	PagePath string
	// OmitFirstPage leaves the page out entirely for page 1.
	OmitFirstPage bool
	// Static parameters sent with every request.
	Static map[string]string
}

// Build serializes q against base. Only set filters are written; a filter
// set to the empty string is written with an empty value so that it never
// collides with an unset one. The page is written as given, without
// clamping. The only error is an unusable base URL.
func Build(base string, d Dialect, q SearchQuery) (*url.URL, error) {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("parse base %q: %w", base, err)
	}
	if !b.IsAbs() || b.Host == "" {
		return nil, fmt.Errorf("base %q is not an absolute URL", base)
	}

	page := q.Page()
	p := d.Path
	if d.PagePath != "" && !(d.OmitFirstPage && page == 1) {
		p = strings.TrimRight(p, "/") + strings.ReplaceAll(d.PagePath, "{page}", strconv.Itoa(page))
	}

	u := b.ResolveReference(&url.URL{Path: p})

	vals := url.Values{}
	for k, v := range d.Static {
		vals.Set(k, v)
	}
	for _, f := range Filters {
		name, ok := d.Params[f]
		if !ok || name == "" {
			continue
		}
		if v, set := q.Get(f); set {
			vals.Set(name, v)
		}
	}
	if d.PageParam != "" && !(d.OmitFirstPage && page == 1) {
		vals.Set(d.PageParam, strconv.Itoa(page))
	}
	// Encode sorts by key.
	u.RawQuery = vals.Encode()
	u.Fragment = ""
	return u, nil
}

// Decode is the inverse of Build for URLs produced with the same dialect.
func Decode(u *url.URL, d Dialect) SearchQuery {
	q := New()
	if u == nil {
		return q
	}
	vals := u.Query()
	for _, f := range Filters {
		name, ok := d.Params[f]
		if !ok || name == "" {
			continue
		}
		if _, present := vals[name]; present {
			q = q.with(f, vals.Get(name))
		}
	}

	page := 1
	if d.PageParam != "" {
		if n, err := strconv.Atoi(vals.Get(d.PageParam)); err == nil {
			page = n
		}
	}
	if d.PagePath != "" {
		prefix, _, _ := strings.Cut(d.PagePath, "{page}")
		if i := strings.LastIndex(u.Path, prefix); i >= 0 && prefix != "" {
			if n, err := strconv.Atoi(path.Base(u.Path[i+len(prefix):])); err == nil {
				page = n
			}
		}
	}
	return q.WithPage(page)
}
