// Package paginate derives pager state from listing pages.
package paginate

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/markup"
)

// Rule locates a source's pager markup.
type Rule struct {
	// Container selects the pager element, e.g. "ul.pagination".
	Container string
	// Anchor selects pager anchors inside the container. Defaults to "a".
	Anchor string
	// Next and Prev select the next/previous anchors inside the container.
	// When empty, rel attributes, classes and arrow texts are used.
	Next string
	Prev string
	// Skip lists extra class names marking non-numeric controls.
	Skip []string
}

// defaultSkip covers ellipsis, direction and current-page markers only.
// Anchors classed "first" or "last" still carry page numbers.
var defaultSkip = []string{
	"ellipsis", "dots", "prev", "previous", "next",
	"current", "active", "selected",
}

var (
	nextTexts = []string{"next", "»", "›", ">", ">>", "next »", "next page"}
	prevTexts = []string{"prev", "previous", "«", "‹", "<", "<<", "« prev", "previous page"}
)

// Resolve returns the pager state. A document without pager markup yields
// DefaultPagination; MaxPage never drops below 1.
func Resolve(doc *markup.Document, r Rule) domain.Pagination {
	p := domain.DefaultPagination()
	if doc == nil || doc.Document == nil || r.Container == "" {
		return p
	}
	pager := doc.Find(r.Container).First()
	if pager.Length() == 0 {
		return p
	}

	anchorSel := r.Anchor
	if anchorSel == "" {
		anchorSel = "a"
	}

	p.HasNext = hasLink(pager, r.Next, anchorSel, "next", nextTexts)
	p.HasPrev = hasLink(pager, r.Prev, anchorSel, "prev", prevTexts)

	skip := append(append([]string{}, defaultSkip...), r.Skip...)
	var last *goquery.Selection
	pager.Find(anchorSel).Each(func(_ int, a *goquery.Selection) {
		if isControl(a, skip) {
			return
		}
		last = a
	})
	if last != nil {
		if n, err := strconv.Atoi(markup.Text(last)); err == nil && n >= 1 {
			p.MaxPage = n
		}
	}
	return p
}

func hasLink(pager *goquery.Selection, selector, anchorSel, rel string, texts []string) bool {
	if selector != "" {
		found := false
		pager.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			found = resolvableHref(a)
			return !found
		})
		return found
	}

	found := false
	pager.Find(anchorSel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !isDirection(a, rel, texts) {
			return true
		}
		found = resolvableHref(a)
		return !found
	})
	return found
}

func isDirection(a *goquery.Selection, rel string, texts []string) bool {
	if v, _ := a.Attr("rel"); strings.EqualFold(strings.TrimSpace(v), rel) {
		return true
	}
	if hasClassLike(a, rel) || hasClassLike(a.Parent(), rel) {
		return true
	}
	t := strings.ToLower(markup.Text(a))
	if t == "" {
		t = strings.ToLower(strings.TrimSpace(a.AttrOr("aria-label", "")))
	}
	for _, x := range texts {
		if t == x {
			return true
		}
	}
	return false
}

func resolvableHref(a *goquery.Selection) bool {
	href := strings.TrimSpace(a.AttrOr("href", ""))
	if href == "" || href == "#" {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// isControl reports whether an anchor, or the list item holding it, is
// tagged as a non-numeric control or as the current page.
func isControl(a *goquery.Selection, skip []string) bool {
	if _, ok := a.Attr("aria-current"); ok {
		return true
	}
	if rel := strings.ToLower(a.AttrOr("rel", "")); rel == "next" || rel == "prev" {
		return true
	}
	for _, s := range []*goquery.Selection{a, a.Parent()} {
		for _, c := range skip {
			if hasClassLike(s, c) {
				return true
			}
		}
	}
	return false
}

// hasClassLike matches class tokens equal to name or ending in "-"+name,
// so "page-item-next" and "pagination-ellipsis" both count.
func hasClassLike(s *goquery.Selection, name string) bool {
	if s == nil || s.Length() == 0 {
		return false
	}
	for _, c := range strings.Fields(strings.ToLower(s.AttrOr("class", ""))) {
		if c == name || strings.HasSuffix(c, "-"+name) || strings.HasSuffix(c, "_"+name) {
			return true
		}
	}
	return false
}
