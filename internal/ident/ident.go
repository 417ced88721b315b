// Package ident canonicalizes path-derived identifiers so that every
// episode or chapter of one series maps to the same series id.
package ident

import (
	"regexp"
	"strings"
	"sync"
)

// A run of trailing suffixes is stripped as a whole so that a second pass
// never finds anything left to remove.
var episodeSuffix = regexp.MustCompile(`(?i)(?:-episode-\d+)+$`)

// Canonicalize strips a trailing "-episode-<digits>" segment. Ids without
// the suffix are returned unchanged.
func Canonicalize(raw string) string {
	return episodeSuffix.ReplaceAllString(raw, "")
}

// CanonicalizeWith strips the episode suffix together with trailing
// "-<token>-<digits>[.<digits>]" segments for every extra token
// (e.g. "chapter").
func CanonicalizeWith(raw string, tokens ...string) string {
	if len(tokens) == 0 {
		return Canonicalize(raw)
	}
	return suffixFor(tokens).ReplaceAllString(raw, "")
}

// PathID derives a raw id from an href: the last non-empty path segment
// with a trailing ".html"/".htm" removed.
func PathID(href string) string {
	h := strings.TrimSpace(href)
	if i := strings.IndexAny(h, "?#"); i >= 0 {
		h = h[:i]
	}
	h = strings.TrimRight(h, "/")
	if i := strings.LastIndex(h, "/"); i >= 0 {
		h = h[i+1:]
	}
	h = strings.TrimSuffix(h, ".html")
	h = strings.TrimSuffix(h, ".htm")
	return h
}

var (
	suffixMu    sync.Mutex
	suffixCache = map[string]*regexp.Regexp{}
)

func suffixFor(tokens []string) *regexp.Regexp {
	alts := []string{`-episode-\d+`}
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "episode" {
			continue
		}
		alts = append(alts, `-`+regexp.QuoteMeta(t)+`-\d+(?:[.-]\d+)?`)
	}
	key := strings.Join(alts, "|")

	suffixMu.Lock()
	defer suffixMu.Unlock()
	if re, ok := suffixCache[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)(?:` + key + `)+$`)
	suffixCache[key] = re
	return re
}
