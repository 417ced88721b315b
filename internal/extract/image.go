package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Lazy-load attributes are preferred over src, which commonly holds a
// placeholder until scripts run.
var imageAttrs = []string{"data-src", "data-lazy-src", "data-original", "src"}

// ImageRule is the usual image fallback chain below selector: srcset first
// candidate, lazy-load attributes, then src.
func ImageRule(selector string) Rule {
	r := Rule{{Selector: selector, Attr: "srcset", Transform: TransformSrcset}}
	for _, a := range imageAttrs {
		r = append(r, Strategy{Selector: selector, Attr: a, Transform: TransformURL})
	}
	return r
}

// ResolveURL resolves raw against base. Inline data and script URIs and
// obvious placeholders resolve to the empty string.
func ResolveURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lu := strings.ToLower(raw)
	if strings.HasPrefix(lu, "data:") || strings.HasPrefix(lu, "javascript:") || isPlaceholder(lu) {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return raw
	}

	if u.IsAbs() {
		return u.String()
	}

	b, err := url.Parse(base)
	if err != nil || b == nil || base == "" {
		return raw
	}

	return b.ResolveReference(u).String()
}

func isPlaceholder(lu string) bool {
	return strings.Contains(lu, "placeholder") ||
		strings.Contains(lu, "lazy.gif") ||
		strings.Contains(lu, "blank.gif") ||
		strings.HasSuffix(lu, "loading.gif")
}

// FirstSrcsetCandidate returns the URL of the first srcset candidate.
func FirstSrcsetCandidate(srcset string) string {
	for p := range strings.SplitSeq(srcset, ",") {
		parts := strings.Fields(strings.TrimSpace(p))
		if len(parts) == 0 {
			continue
		}
		return parts[0]
	}
	return ""
}

// AnyImage scans every img below sel and returns the first usable URL.
func AnyImage(sel *goquery.Selection, base string) (string, bool) {
	return ImageRule("img").Apply(sel, base)
}
