// Package fetch retrieves raw upstream markup with per-source header
// profiles and bounded timeouts. It never retries; that policy belongs to
// the caller.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/brogergvhs/showscrape/internal/ui"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultMaxBody = 10 << 20
)

// HeaderProfile is the static header set one upstream expects. Profiles are
// configuration; the client applies whichever one it is asked for.
type HeaderProfile struct {
	UserAgent      string            `yaml:"user_agent"`
	Referer        string            `yaml:"referer"`
	AcceptLanguage string            `yaml:"accept_language"`
	Accept         string            `yaml:"accept"`
	XHR            bool              `yaml:"xhr"`
	Extra          map[string]string `yaml:"extra"`
}

func (p HeaderProfile) apply(h http.Header) {
	if p.UserAgent != "" {
		h.Set("User-Agent", p.UserAgent)
	}
	if p.Referer != "" {
		h.Set("Referer", p.Referer)
	}
	if p.AcceptLanguage != "" {
		h.Set("Accept-Language", p.AcceptLanguage)
	}
	accept := p.Accept
	if accept == "" {
		accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	}
	h.Set("Accept", accept)
	if p.XHR {
		h.Set("X-Requested-With", "XMLHttpRequest")
	}
	for k, v := range p.Extra {
		h.Set(k, v)
	}
}

// Response is one fetched upstream document. It is never persisted.
type Response struct {
	Body        []byte
	URL         string
	Status      int
	ContentType string
	FetchedAt   time.Time
}

type Options struct {
	Timeout  time.Duration
	MaxBody  int64
	Profiles map[string]HeaderProfile
	Limiter  *DomainLimiter
	Logger   *ui.Logger
}

type Client struct {
	http     *http.Client
	timeout  time.Duration
	maxBody  int64
	profiles map[string]HeaderProfile
	limiter  *DomainLimiter
	log      *ui.Logger
}

func New(hc *http.Client, opts Options) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	if opts.Logger == nil {
		opts.Logger = ui.NopLogger()
	}
	return &Client{
		http:     hc,
		timeout:  opts.Timeout,
		maxBody:  opts.MaxBody,
		profiles: opts.Profiles,
		limiter:  opts.Limiter,
		log:      opts.Logger,
	}
}

// HasProfile reports whether a header profile is configured.
func (c *Client) HasProfile(name string) bool {
	_, ok := c.profiles[name]
	return ok
}

// Fetch GETs target with the named header profile. Every failure is a
// *TransportError.
func (c *Client) Fetch(ctx context.Context, target, profile string) (*Response, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, &TransportError{URL: target, Err: fmt.Errorf("%w: %v", ErrInvalidURL, errOrMissingHost(err))}
	}

	// The politeness wait counts against the fetch timeout.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx, u.Hostname()); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &TransportError{URL: target, Err: context.Canceled}
		}
		return nil, &TransportError{URL: target, Timeout: true, Err: fmt.Errorf("%w: %v", ErrRateLimited, err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	p, ok := c.profiles[profile]
	if !ok && profile != "" {
		c.log.Debugf("header profile %q not configured, sending defaults", profile)
	}
	p.apply(req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{URL: target, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, c.classify(ctx, target, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, &TransportError{URL: target, Err: ErrBodyTooLarge}
	}

	c.log.Debugf("fetched %s status=%d bytes=%d in %s", target, resp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))

	return &Response{
		Body:        body,
		URL:         resp.Request.URL.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// classify maps a client error to a TransportError. The request's own
// deadline is a timeout; a cancelled caller context is a cancellation.
func (c *Client) classify(ctx context.Context, target string, err error) *TransportError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{URL: target, Timeout: true, Err: err}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return &TransportError{URL: target, Err: context.Canceled}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransportError{URL: target, Timeout: true, Err: err}
	}
	return &TransportError{URL: target, Err: err}
}

func errOrMissingHost(err error) error {
	if err != nil {
		return err
	}
	return errors.New("missing host")
}
