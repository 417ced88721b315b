package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/showscrape/internal/fetch"
	"github.com/brogergvhs/showscrape/internal/metrics"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/sources"
)

// upstream is a fake site serving fixtures by path and counting requests.
type upstream struct {
	mu      sync.Mutex
	hits    map[string]int
	queries map[string]url.Values
	headers map[string]http.Header
	routes  map[string]http.HandlerFunc
	srv     *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{
		hits:    map[string]int{},
		queries: map[string]url.Values{},
		headers: map[string]http.Header{},
		routes:  map[string]http.HandlerFunc{},
	}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		u.queries[r.URL.Path] = r.URL.Query()
		u.headers[r.URL.Path] = r.Header.Clone()
		h, ok := u.routes[r.URL.Path]
		u.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) route(path string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[path] = h
}

func (u *upstream) serveFile(t *testing.T, path, name string) {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	u.route(path, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})
}

func (u *upstream) status(path string, code int) {
	u.route(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *upstream) query(path string) url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.queries[path]
}

func (u *upstream) header(path string) http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.headers[path]
}

var testProfiles = map[string]fetch.HeaderProfile{
	"drama":      {UserAgent: "showscrape-test", Referer: "https://drama.example/", AcceptLanguage: "en-US"},
	"drama-ajax": {UserAgent: "showscrape-test", XHR: true, Accept: "application/json"},
	"manga":      {UserAgent: "showscrape-test"},
}

func newTestEngine(t *testing.T, up *upstream, m *metrics.Metrics) *Engine {
	t.Helper()
	src := sources.Drama()
	src.BaseURL = up.srv.URL

	reg := sources.NewRegistry()
	require.NoError(t, reg.Register(src))

	client := fetch.New(up.srv.Client(), fetch.Options{Timeout: 2 * time.Second, Profiles: testProfiles})
	e, err := New(Options{
		Registry: reg,
		Fetcher:  client,
		Retry:    RetryOptions{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		Metrics:  m,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func requireFailure(t *testing.T, err error, code Code) *Failure {
	t.Helper()
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok, "want *Failure, got %T: %v", err, err)
	assert.Equal(t, code, f.Code, f.Error())
	return f
}

func TestSearch_ItemsAndMaxPage(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/search", "drama_search.html")
	e := newTestEngine(t, up, nil)

	res, err := e.Search(context.Background(), "drama", "moon", 2)
	require.NoError(t, err)

	assert.Len(t, res.Items, 24)
	assert.Equal(t, 7, res.Pagination.MaxPage)
	assert.True(t, res.Pagination.HasNext)

	q := up.query("/search")
	assert.Equal(t, "moon", q.Get("keyword"))
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "movies", q.Get("type"))

	h := up.header("/search")
	assert.Equal(t, "showscrape-test", h.Get("User-Agent"))
	assert.Equal(t, "https://drama.example/", h.Get("Referer"))
	assert.Equal(t, "en-US", h.Get("Accept-Language"))
}

func TestListing_SecondCallIsCached(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/recently-added", "drama_listing.html")
	m := metrics.New()
	e := newTestEngine(t, up, m)
	ctx := context.Background()

	first, err := e.Listing(ctx, "drama", 1, map[query.Filter]string{query.FilterCountry: "korean"})
	require.NoError(t, err)
	second, err := e.Listing(ctx, "drama", 1, map[query.Filter]string{query.FilterCountry: "korean"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Items, 3)
	assert.Equal(t, 4, first.Pagination.MaxPage)
	assert.Equal(t, 1, up.count("/recently-added"))
	assert.Equal(t, "korean", up.query("/recently-added").Get("country"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheTotal.WithLabelValues(TierVolatile, "hit")))

	_, err = e.Listing(ctx, "drama", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, up.count("/recently-added"))
}

func TestFetch_RetriesOnceOnServerError(t *testing.T) {
	up := newUpstream(t)
	body, err := os.ReadFile(filepath.Join("testdata", "drama_listing.html"))
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	up.route("/recently-added", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	})
	e := newTestEngine(t, up, nil)

	res, err := e.Listing(context.Background(), "drama", 1, nil)
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Equal(t, 2, up.count("/recently-added"))
}

func TestFetch_GivesUpAfterOneRetry(t *testing.T) {
	up := newUpstream(t)
	up.status("/recently-added", http.StatusBadGateway)
	e := newTestEngine(t, up, nil)

	_, err := e.Listing(context.Background(), "drama", 1, nil)
	f := requireFailure(t, err, CodeUpstreamStatus)
	assert.Equal(t, http.StatusBadGateway, f.Status)
	assert.Equal(t, "drama", f.Source)
	assert.Equal(t, 2, up.count("/recently-added"))
}

func TestFetch_NoRetryOnNotFound(t *testing.T) {
	up := newUpstream(t)
	e := newTestEngine(t, up, nil)

	_, err := e.Detail(context.Background(), "drama", "missing-show")
	f := requireFailure(t, err, CodeUpstreamStatus)
	assert.Equal(t, http.StatusNotFound, f.Status)
	assert.Equal(t, 1, up.count("/drama-detail/missing-show"))
}

func TestListing_DriftIsNotCached(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/recently-added", "drama_drifted.html")
	m := metrics.New()
	e := newTestEngine(t, up, m)
	ctx := context.Background()

	for range 2 {
		res, err := e.Listing(ctx, "drama", 1, nil)
		require.NoError(t, err)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
		assert.Equal(t, 1, res.Pagination.MaxPage)
	}
	assert.Equal(t, 2, up.count("/recently-added"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShapeDriftTotal.WithLabelValues("drama", "listing")))
}

func TestListing_GenuineEmptyIsCached(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/recently-added", "drama_empty.html")
	m := metrics.New()
	e := newTestEngine(t, up, m)
	ctx := context.Background()

	for range 2 {
		res, err := e.Listing(ctx, "drama", 1, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Items)
	}
	assert.Equal(t, 1, up.count("/recently-added"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ShapeDriftTotal.WithLabelValues("drama", "listing")))
}

func TestDetail(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/drama-detail/show-1", "drama_detail.html")
	up.serveFile(t, "/drama-detail/show-2", "drama_detail_no_total.html")
	e := newTestEngine(t, up, nil)
	ctx := context.Background()

	rec, err := e.Detail(ctx, "drama", "show-1")
	require.NoError(t, err)
	require.NotNil(t, rec.TotalEpisode)
	assert.Equal(t, "16", *rec.TotalEpisode)
	assert.Len(t, rec.Episodes, 3)
	assert.Equal(t, up.srv.URL+"/posters/show-1-small.jpg", *rec.ThumbnailURL)

	again, err := e.Detail(ctx, "drama", "show-1-episode-3")
	require.NoError(t, err)
	assert.Equal(t, rec, again)
	assert.Equal(t, 1, up.count("/drama-detail/show-1"))

	sparse, err := e.Detail(ctx, "drama", "show-2")
	require.NoError(t, err)
	assert.Nil(t, sparse.TotalEpisode)
	assert.NotNil(t, sparse.Genres)

	_, err = e.Detail(ctx, "drama", "a/b")
	requireFailure(t, err, CodeInvalidRequest)
}

func TestHome_PartialSuccess(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/recently-added", "drama_listing.html")
	up.serveFile(t, "/recently-added-kshow", "drama_listing.html")
	up.serveFile(t, "/most-popular-drama", "drama_search.html")
	up.status("/recently-added-movie", http.StatusInternalServerError)
	e := newTestEngine(t, up, nil)

	home, err := e.Home(context.Background(), "drama")
	require.NoError(t, err)

	assert.Len(t, home.Feeds, 3)
	assert.Len(t, home.Feeds["popular"].Items, 24)
	assert.Equal(t, map[string]string{"movies": string(CodeUpstreamStatus)}, home.Failed)
	assert.Equal(t, 2, up.count("/recently-added-movie"))
	assert.Empty(t, up.query("/recently-added").Get("page"))
}

func TestHome_AllFeedsFailed(t *testing.T) {
	up := newUpstream(t)
	e := newTestEngine(t, up, nil)

	_, err := e.Home(context.Background(), "drama")
	requireFailure(t, err, CodeUpstreamStatus)
}

func TestListingPages_PartialSuccess(t *testing.T) {
	up := newUpstream(t)
	body, err := os.ReadFile(filepath.Join("testdata", "drama_listing.html"))
	require.NoError(t, err)
	up.route("/recently-added", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	})
	e := newTestEngine(t, up, nil)

	set, err := e.ListingPages(context.Background(), "drama", 1, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, set.Pages)
	assert.Len(t, set.Items, 6)
	assert.Equal(t, map[int]string{2: string(CodeUpstreamStatus)}, set.Failed)
	assert.Equal(t, 4, set.Pagination.MaxPage)

	_, err = e.ListingPages(context.Background(), "drama", 3, 1, nil)
	requireFailure(t, err, CodeInvalidRequest)
	_, err = e.ListingPages(context.Background(), "drama", 1, DefaultMaxPages+1, nil)
	requireFailure(t, err, CodeInvalidRequest)
}

func TestSuggest(t *testing.T) {
	up := newUpstream(t)
	raw, err := os.ReadFile(filepath.Join("testdata", "drama_suggest.json"))
	require.NoError(t, err)
	up.route("/ajax/suggest", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("keyword") {
		case "off":
			_, _ = w.Write([]byte(`{"status":false,"html":""}`))
		case "html":
			_, _ = w.Write([]byte(`<html>blocked</html>`))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(raw)
		}
	})
	e := newTestEngine(t, up, nil)
	ctx := context.Background()

	s, err := e.Suggest(ctx, "drama", "show")
	require.NoError(t, err)
	require.Len(t, s.Items, 2)
	assert.Equal(t, "show-1", s.Items[0].CanonicalID)
	assert.Equal(t, up.srv.URL+"/covers/show-1.jpg", *s.Items[0].ImageURL)
	assert.JSONEq(t, string(raw), string(s.Raw))
	assert.Equal(t, "XMLHttpRequest", up.header("/ajax/suggest").Get("X-Requested-With"))

	_, err = e.Suggest(ctx, "drama", "off")
	requireFailure(t, err, CodeUpstreamShape)
	_, err = e.Suggest(ctx, "drama", "html")
	requireFailure(t, err, CodeUpstreamShape)
	_, err = e.Suggest(ctx, "drama", " ")
	requireFailure(t, err, CodeInvalidRequest)
}

func TestCatalog_ForceRefreshIsPerTier(t *testing.T) {
	up := newUpstream(t)
	up.serveFile(t, "/drama-list", "drama_catalog.html")
	e := newTestEngine(t, up, nil)
	ctx := context.Background()

	cat, err := e.Catalog(ctx, "drama")
	require.NoError(t, err)
	assert.Len(t, cat.Genres, 2)

	require.NoError(t, e.ForceRefresh(TierVolatile))
	_, err = e.Catalog(ctx, "drama")
	require.NoError(t, err)
	e.Wait()
	assert.Equal(t, 1, up.count("/drama-list"))

	require.NoError(t, e.ForceRefresh(TierCatalog))
	stale, err := e.Catalog(ctx, "drama")
	require.NoError(t, err)
	assert.Equal(t, cat, stale)
	e.Wait()
	assert.Equal(t, 2, up.count("/drama-list"))

	requireFailure(t, e.ForceRefresh("nope"), CodeInvalidRequest)
}

func TestRequestValidation(t *testing.T) {
	up := newUpstream(t)
	e := newTestEngine(t, up, nil)
	ctx := context.Background()

	_, err := e.Listing(ctx, "nope", 1, nil)
	requireFailure(t, err, CodeUnknownSource)

	_, err = e.Listing(ctx, "drama", 0, nil)
	requireFailure(t, err, CodeInvalidRequest)

	_, err = e.Search(ctx, "drama", "moon", -1)
	requireFailure(t, err, CodeInvalidRequest)

	_, err = e.Search(ctx, "drama", "", 1)
	requireFailure(t, err, CodeInvalidRequest)
}

type fetcherFunc func(ctx context.Context, url, profile string) (*fetch.Response, error)

func (f fetcherFunc) Fetch(ctx context.Context, url, profile string) (*fetch.Response, error) {
	return f(ctx, url, profile)
}

func newFuncEngine(t *testing.T, f fetcherFunc) *Engine {
	t.Helper()
	e, err := New(Options{
		Registry: sources.Builtin(),
		Fetcher:  f,
		Retry:    RetryOptions{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestFailureClassification(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	e := newFuncEngine(t, func(_ context.Context, u, _ string) (*fetch.Response, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, &fetch.TransportError{URL: u, Timeout: true}
	})

	_, err := e.Listing(context.Background(), "manga", 1, nil)
	requireFailure(t, err, CodeUpstreamTimeout)
	assert.Equal(t, 2, calls)

	e = newFuncEngine(t, func(_ context.Context, u, _ string) (*fetch.Response, error) {
		return nil, &fetch.TransportError{URL: u, Err: errors.New("connection refused")}
	})
	_, err = e.Listing(context.Background(), "manga", 1, nil)
	requireFailure(t, err, CodeUpstreamUnavailable)
}

func TestPanicBecomesInternalFailure(t *testing.T) {
	e := newFuncEngine(t, func(context.Context, string, string) (*fetch.Response, error) {
		panic("boom")
	})

	var err error
	assert.NotPanics(t, func() {
		_, err = e.Detail(context.Background(), "manga", "iron-tide")
	})
	requireFailure(t, err, CodeInternal)
}

func TestCanceledRequest(t *testing.T) {
	started := make(chan struct{})
	e := newFuncEngine(t, func(ctx context.Context, u string, _ string) (*fetch.Response, error) {
		close(started)
		<-ctx.Done()
		return nil, &fetch.TransportError{URL: u, Err: ctx.Err()}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := e.Search(ctx, "manga", "tide", 1)
	requireFailure(t, err, CodeCanceled)
}

func TestNew_RejectsMissingProfiles(t *testing.T) {
	client := fetch.New(nil, fetch.Options{Profiles: map[string]fetch.HeaderProfile{"drama": {}}})
	_, err := New(Options{Registry: sources.Builtin(), Fetcher: client})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drama-ajax")

	_, err = New(Options{Registry: sources.NewRegistry(), Fetcher: client})
	assert.Error(t, err)
}

func TestSources(t *testing.T) {
	e := newFuncEngine(t, func(context.Context, string, string) (*fetch.Response, error) { return nil, nil })
	infos := e.Sources()
	require.Len(t, infos, 2)
	assert.Equal(t, "drama", infos[0].ID)
	assert.Contains(t, infos[0].Kinds, "suggest")
	assert.NotContains(t, infos[1].Kinds, "suggest")
	assert.Equal(t, []string{"latest", "popular"}, infos[1].Feeds)
	assert.Equal(t, []string{TierCatalog, TierVolatile}, e.Tiers())
}
