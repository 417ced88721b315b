package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/extract"
	"github.com/brogergvhs/showscrape/internal/markup"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/sources"
)

var errNotJSON = errors.New("suggest response is not a JSON object")

// Suggest queries a source's AJAX suggest endpoint. The JSON answer is
// passed through after a shape check, together with the items parsed from
// its HTML fragment.
func (e *Engine) Suggest(ctx context.Context, sourceID, text string) (s domain.Suggestions, err error) {
	defer e.guard("suggest", sourceID, &err)

	src, err := e.source(sourceID)
	if err != nil {
		return s, err
	}
	ep := src.Suggest
	if ep == nil {
		return s, invalid(src.ID, "source has no suggest endpoint")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return s, invalid(src.ID, "suggest text is empty")
	}

	u, err := query.Build(src.BaseURL, ep.Dialect, query.New().WithText(text))
	if err != nil {
		return s, fmt.Errorf("build suggest url: %w", err)
	}
	target := u.String()

	return cached(ctx, e, src, sources.KindSuggest, target, func(ctx context.Context) (domain.Suggestions, bool, error) {
		resp, err := e.get(ctx, src, target, ep.HeaderProfile)
		if err != nil {
			return domain.Suggestions{}, false, err
		}
		fragment, err := checkSuggestShape(resp.Body, ep)
		if err != nil {
			e.drift(src, sources.KindSuggest, target, 0)
			return domain.Suggestions{}, false, shape(src.ID, err)
		}
		return domain.Suggestions{
			Items: extract.Listing(markup.ParseString(fragment), ep.Profile, resp.URL, src.Canonicalize),
			Raw:   json.RawMessage(resp.Body),
		}, true, nil
	})
}

// checkSuggestShape verifies the minimal contract of a suggest answer: a
// JSON object, a true status when the endpoint has one, and a string HTML
// field. It returns the fragment.
func checkSuggestShape(body []byte, ep *sources.SuggestEndpoint) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errNotJSON
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return "", errNotJSON
	}
	if ep.StatusField != "" {
		st := doc.Get(ep.StatusField)
		if !st.Exists() || !st.Bool() {
			return "", fmt.Errorf("suggest status %q is %s", ep.StatusField, orMissing(st))
		}
	}
	if ep.HTMLField == "" {
		return "", nil
	}
	h := doc.Get(ep.HTMLField)
	if h.Type != gjson.String {
		return "", fmt.Errorf("suggest field %q is %s, want a string", ep.HTMLField, orMissing(h))
	}
	return h.String(), nil
}

func orMissing(r gjson.Result) string {
	if !r.Exists() {
		return "missing"
	}
	return r.Raw
}
