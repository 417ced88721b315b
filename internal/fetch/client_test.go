package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(opts Options) *Client {
	return New(&http.Client{}, opts)
}

func TestFetch_AppliesHeaderProfile(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := newTestClient(Options{Profiles: map[string]HeaderProfile{
		"drama": {
			UserAgent:      "drama-agent/1.0",
			Referer:        "https://drama.example/",
			AcceptLanguage: "en-US,en;q=0.9",
			XHR:            true,
			Extra:          map[string]string{"X-Test": "1"},
		},
	}})

	resp, err := c.Fetch(context.Background(), srv.URL+"/list", "drama")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, "text/html", resp.ContentType)
	assert.False(t, resp.FetchedAt.IsZero())

	assert.Equal(t, "drama-agent/1.0", got.Get("User-Agent"))
	assert.Equal(t, "https://drama.example/", got.Get("Referer"))
	assert.Equal(t, "en-US,en;q=0.9", got.Get("Accept-Language"))
	assert.Equal(t, "XMLHttpRequest", got.Get("X-Requested-With"))
	assert.Equal(t, "1", got.Get("X-Test"))
	assert.True(t, c.HasProfile("drama"))
	assert.False(t, c.HasProfile("manga"))
}

func TestFetch_Non2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := newTestClient(Options{})

	_, err := c.Fetch(context.Background(), srv.URL+"/missing", "")
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, 404, te.Status)
	assert.False(t, te.Retryable())

	_, err = c.Fetch(context.Background(), srv.URL+"/down", "")
	te, ok = AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, 503, te.Status)
	assert.True(t, te.Retryable())

	_, err = c.Fetch(context.Background(), srv.URL+"/busy", "")
	te, _ = AsTransportError(err)
	assert.True(t, te.Retryable())
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(Options{Timeout: 50 * time.Millisecond})
	_, err := c.Fetch(context.Background(), srv.URL, "")
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.True(t, te.Timeout)
	assert.True(t, te.Retryable())
	assert.Contains(t, te.Error(), "timeout")
}

func TestFetch_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := newTestClient(Options{Timeout: 5 * time.Second})
	_, err := c.Fetch(ctx, srv.URL, "")
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.True(t, te.Canceled())
	assert.False(t, te.Timeout)
	assert.False(t, te.Retryable())
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newTestClient(Options{}).Fetch(context.Background(), addr, "")
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Zero(t, te.Status)
	assert.True(t, te.Retryable())
}

func TestFetch_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	_, err := newTestClient(Options{MaxBody: 1024}).Fetch(context.Background(), srv.URL, "")
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.ErrorIs(t, te, ErrBodyTooLarge)
	assert.False(t, te.Retryable())
}

func TestFetch_InvalidURL(t *testing.T) {
	for _, target := range []string{"::not-a-url", "/relative/only"} {
		_, err := newTestClient(Options{}).Fetch(context.Background(), target, "")
		te, ok := AsTransportError(err)
		require.True(t, ok, target)
		assert.ErrorIs(t, te, ErrInvalidURL)
		assert.False(t, te.Retryable(), target)
	}
}

func TestFetch_LimiterWaitIsBoundedByTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limiter := NewDomainLimiter(0, RateLimiterSettings{Requests: 1, Window: time.Hour})
	c := newTestClient(Options{Timeout: 100 * time.Millisecond, Limiter: limiter})

	_, err := c.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), srv.URL, "")
		done <- err
	}()

	select {
	case err := <-done:
		te, ok := AsTransportError(err)
		require.True(t, ok)
		assert.True(t, te.Timeout)
		assert.ErrorIs(t, te, ErrRateLimited)
		assert.False(t, te.Retryable())
	case <-time.After(3 * time.Second):
		t.Fatal("second fetch blocked past the client timeout")
	}
}

func TestDomainLimiter_SpacesRequests(t *testing.T) {
	l := NewDomainLimiter(30*time.Millisecond, RateLimiterSettings{})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "drama.example"))
	require.NoError(t, l.Wait(ctx, "DRAMA.example"))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "manga.example"))
	assert.Less(t, time.Since(start), 25*time.Millisecond)
}

func TestDomainLimiter_HonoursContext(t *testing.T) {
	l := NewDomainLimiter(0, RateLimiterSettings{})
	l.SetHostRate("drama.example", RateLimiterSettings{Requests: 1, Window: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "drama.example"))
	assert.Error(t, l.Wait(ctx, "drama.example"))

	var nilLimiter *DomainLimiter
	assert.NoError(t, nilLimiter.Wait(ctx, "x"))
}
