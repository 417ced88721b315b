// Package markup turns raw upstream bytes into a selector-queryable tree.
package markup

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps a goquery document. A Document is never nil and never
// carries a parse error: input the HTML tokenizer cannot handle yields an
// empty tree instead.
type Document struct {
	*goquery.Document
	failed bool
}

// Parse builds a Document from raw markup.
func Parse(body []byte) *Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil || doc == nil {
		return emptyDocument()
	}
	return &Document{Document: doc}
}

// ParseString is Parse for string input, used for HTML embedded in JSON
// fragments.
func ParseString(s string) *Document {
	return Parse([]byte(s))
}

// Empty reports whether the document has no element content at all, either
// because parsing failed or because the body was blank.
func (d *Document) Empty() bool {
	if d == nil || d.Document == nil || d.failed {
		return true
	}
	return d.Find("body").Children().Length() == 0 && strings.TrimSpace(d.Find("body").Text()) == ""
}

// ParseFailed reports whether the tokenizer rejected the input.
func (d *Document) ParseFailed() bool {
	return d == nil || d.failed
}

func emptyDocument() *Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return &Document{Document: doc, failed: true}
}

// Text returns the whitespace-normalized text of a selection.
func Text(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return NormSpace(s.Text())
}

// NormSpace collapses runs of whitespace into single spaces.
func NormSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
