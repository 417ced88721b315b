// Package extract pulls typed fields out of parsed upstream pages using
// declarative extractor profiles. Upstream markup churn is absorbed by
// editing profile tables, not code.
//
// Every lookup reports absence with a false ok value; a missing field never
// aborts extraction of the other fields of the same item.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/showscrape/internal/ident"
	"github.com/brogergvhs/showscrape/internal/markup"
)

// Field names a value inside an extractor profile.
type Field string

const (
	FieldTitle    Field = "title"
	FieldRawID    Field = "raw_id"
	FieldImage    Field = "image"
	FieldEpisode  Field = "episode"
	FieldTime     Field = "time"
	FieldRating   Field = "rating"
	FieldAltTitle Field = "other_name"
	FieldSynopsis Field = "synopsis"
	FieldCountry  Field = "country"
	FieldStatus   Field = "status"
	FieldYear     Field = "release_year"
	FieldTotal    Field = "total_episode"
	FieldDuration Field = "duration"
	FieldTrailer  Field = "trailer"
)

// Transform post-processes a matched value.
type Transform int

const (
	TransformNone Transform = iota
	// TransformPathID keeps the last path segment of an href.
	TransformPathID
	// TransformURL resolves the value against the page URL.
	TransformURL
	// TransformSrcset takes the first candidate of a srcset and resolves it.
	TransformSrcset
)

// ParseFunc is one of the named parse utilities in parse.go.
type ParseFunc func(string) (string, bool)

// Strategy is one attempt at locating a value.
//
// Selector is evaluated relative to the context node; an empty Selector
// means the context node itself. Attr selects an attribute; empty means the
// normalized text content. Pattern, when set, must match and its first
// submatch (or the whole match) becomes the value. Parse runs after Pattern.
type Strategy struct {
	Selector  string
	Attr      string
	Pattern   *regexp.Regexp
	Parse     ParseFunc
	Transform Transform
}

// Rule is an ordered fallback chain: the first strategy yielding a
// non-empty value wins.
type Rule []Strategy

// Apply evaluates the rule against sel. base is the page URL used by URL
// transforms.
func (r Rule) Apply(sel *goquery.Selection, base string) (string, bool) {
	if sel == nil || sel.Length() == 0 {
		return "", false
	}
	for _, st := range r {
		if v, ok := st.apply(sel, base); ok {
			return v, true
		}
	}
	return "", false
}

func (st Strategy) apply(sel *goquery.Selection, base string) (string, bool) {
	nodes := sel
	if st.Selector != "" {
		nodes = sel.Find(st.Selector)
	}

	var out string
	var found bool
	nodes.EachWithBreak(func(_ int, n *goquery.Selection) bool {
		v, ok := st.value(n, base)
		if !ok {
			return true
		}
		out, found = v, true
		return false
	})
	return out, found
}

func (st Strategy) value(n *goquery.Selection, base string) (string, bool) {
	var v string
	if st.Attr == "" {
		v = markup.Text(n)
	} else {
		a, ok := n.Attr(st.Attr)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(a)
	}
	if v == "" {
		return "", false
	}

	if st.Pattern != nil {
		m := st.Pattern.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			v = strings.TrimSpace(m[1])
		} else {
			v = strings.TrimSpace(m[0])
		}
		if v == "" {
			return "", false
		}
	}

	if st.Parse != nil {
		p, ok := st.Parse(v)
		if !ok {
			return "", false
		}
		v = p
	}

	switch st.Transform {
	case TransformPathID:
		v = ident.PathID(v)
	case TransformURL:
		v = ResolveURL(base, v)
	case TransformSrcset:
		v = ResolveURL(base, FirstSrcsetCandidate(v))
	}
	if v == "" {
		return "", false
	}
	return v, true
}

// ListRule collects every matching node's value, e.g. genre anchors.
type ListRule struct {
	Selector string
	Attr     string
}

// Apply returns the trimmed, de-duplicated values in document order.
func (lr ListRule) Apply(sel *goquery.Selection) []string {
	if lr.Selector == "" || sel == nil {
		return nil
	}
	var raw []string
	sel.Find(lr.Selector).Each(func(_ int, n *goquery.Selection) {
		if lr.Attr == "" {
			raw = append(raw, markup.Text(n))
			return
		}
		if a, ok := n.Attr(lr.Attr); ok {
			raw = append(raw, a)
		}
	})
	return normList(raw)
}

func normList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ","))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Text is a shorthand strategy reading the text of selector.
func Text(selector string) Strategy { return Strategy{Selector: selector} }

// Attr is a shorthand strategy reading attr of selector.
func Attr(selector, attr string) Strategy { return Strategy{Selector: selector, Attr: attr} }

// Labeled reads the value following "label:" in the text of selector.
func Labeled(selector, label string) Strategy {
	return Strategy{
		Selector: selector,
		Pattern:  regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `\s*:\s*(.+)`),
	}
}
