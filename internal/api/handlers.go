package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/brogergvhs/showscrape/internal/cache"
	"github.com/brogergvhs/showscrape/internal/domain"
	"github.com/brogergvhs/showscrape/internal/engine"
	"github.com/brogergvhs/showscrape/internal/episodes"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/sources"
)

// StatusClientClosedRequest is the non-standard status logged when the
// caller went away before the answer was ready.
const StatusClientClosedRequest = 499

// Engine is what the API serves. *engine.Engine implements it.
type Engine interface {
	Sources() []domain.SourceInfo
	Listing(ctx context.Context, sourceID string, page int, filters map[query.Filter]string) (domain.ListingResult, error)
	ListingPages(ctx context.Context, sourceID string, from, to int, filters map[query.Filter]string) (domain.PageSet, error)
	Search(ctx context.Context, sourceID, text string, page int) (domain.ListingResult, error)
	Detail(ctx context.Context, sourceID, id string) (domain.DetailRecord, error)
	Home(ctx context.Context, sourceID string) (domain.HomeFeeds, error)
	Catalog(ctx context.Context, sourceID string) (domain.Catalog, error)
	Suggest(ctx context.Context, sourceID, text string) (domain.Suggestions, error)
	Freshness(kind sources.Kind) cache.Freshness
	ForceRefresh(tier string) error
	Tiers() []string
}

type Handler struct {
	eng Engine
}

func NewHandler(eng Engine) *Handler {
	return &Handler{eng: eng}
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(code, msg string) errorEnvelope {
	return errorEnvelope{Error: errorPayload{Code: code, Message: msg}}
}

// statusOf maps a failure code to the HTTP status of the answer.
func statusOf(f *engine.Failure) int {
	switch f.Code {
	case engine.CodeInvalidRequest:
		return http.StatusBadRequest
	case engine.CodeUnknownSource:
		return http.StatusNotFound
	case engine.CodeUpstreamStatus:
		if f.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case engine.CodeUpstreamUnavailable, engine.CodeUpstreamShape:
		return http.StatusBadGateway
	case engine.CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case engine.CodeCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	f, ok := engine.AsFailure(err)
	if !ok {
		f = &engine.Failure{Code: engine.CodeInternal, Message: "internal error", Err: err}
	}
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(statusOf(f), errorBody(string(f.Code), f.Message))
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.fail(c, &engine.Failure{Code: engine.CodeInvalidRequest, Source: c.Param("source"), Message: msg})
}

// ok writes a data answer with the freshness directive of kind.
func (h *Handler) ok(c *gin.Context, kind sources.Kind, body any) {
	c.Header("Cache-Control", h.eng.Freshness(kind).Directive())
	c.JSON(http.StatusOK, body)
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// filters reads the facet parameters present in the query string. A
// parameter given with an empty value is kept as an empty filter.
func filters(c *gin.Context) map[query.Filter]string {
	out := map[query.Filter]string{}
	for _, f := range query.Filters {
		if f == query.FilterText {
			continue
		}
		if v, ok := c.GetQuery(string(f)); ok {
			out[f] = v
		}
	}
	return out
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sources": len(h.eng.Sources())})
}

func (h *Handler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.eng.Sources()})
}

func (h *Handler) Listing(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	res, err := h.eng.Listing(c.Request.Context(), c.Param("source"), page, filters(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, sources.KindListing, res)
}

func (h *Handler) Pages(c *gin.Context) {
	from, err := intQuery(c, "from", 1)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	to, err := intQuery(c, "to", from)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	set, err := h.eng.ListingPages(c.Request.Context(), c.Param("source"), from, to, filters(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, sources.KindListing, set)
}

func (h *Handler) Search(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	res, err := h.eng.Search(c.Request.Context(), c.Param("source"), c.Query("q"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, sources.KindSearch, res)
}

// Detail serves a series record. The episode list can be narrowed with
// episode (label), range ("a-b", 1-based) or list ("1,3,5").
func (h *Handler) Detail(c *gin.Context) {
	rec, err := h.eng.Detail(c.Request.Context(), c.Param("source"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	label, rng, list := c.Query("episode"), c.Query("range"), c.Query("list")
	if label != "" || rng != "" || list != "" {
		sel, err := episodes.Filter(rec.Episodes, label, rng, list)
		if err != nil {
			h.badRequest(c, err.Error())
			return
		}
		rec.Episodes = sel
	}
	h.ok(c, sources.KindDetail, rec)
}

func (h *Handler) Home(c *gin.Context) {
	home, err := h.eng.Home(c.Request.Context(), c.Param("source"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, sources.KindHome, home)
}

func (h *Handler) Catalog(c *gin.Context) {
	cat, err := h.eng.Catalog(c.Request.Context(), c.Param("source"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, sources.KindCatalog, cat)
}

func (h *Handler) Suggest(c *gin.Context) {
	s, err := h.eng.Suggest(c.Request.Context(), c.Param("source"), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, sources.KindSuggest, s)
}

func (h *Handler) Refresh(c *gin.Context) {
	tier := c.Param("tier")
	if err := h.eng.ForceRefresh(tier); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusAccepted, gin.H{"tier": tier, "status": "stale"})
}
