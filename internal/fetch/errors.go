package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrBodyTooLarge is wrapped when an upstream body exceeds the read cap.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

var (
	// ErrInvalidURL is wrapped when the target cannot be requested at all.
	ErrInvalidURL = errors.New("invalid url")
	// ErrRateLimited is wrapped when the per-host limiter could not admit
	// the request before its deadline.
	ErrRateLimited = errors.New("rate limit wait exceeded deadline")
)

// TransportError reports a failed upstream fetch: a non-2xx status, a
// timeout, or a connection-level error. It never carries a panic.
type TransportError struct {
	URL     string
	Status  int
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timeout", e.URL)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: failed", e.URL)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Canceled reports whether the caller gave up on the request.
func (e *TransportError) Canceled() bool {
	return e != nil && errors.Is(e.Err, context.Canceled)
}

// Retryable reports whether one more attempt may succeed: timeouts,
// connection errors, 5xx and 429. Client errors, cancellation, invalid
// targets and limiter deadlines are final.
func (e *TransportError) Retryable() bool {
	if e == nil || e.Canceled() {
		return false
	}
	if errors.Is(e.Err, ErrInvalidURL) || errors.Is(e.Err, ErrRateLimited) {
		return false
	}
	if e.Timeout {
		return true
	}
	if e.Status != 0 {
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	}
	return e.Err != nil && !errors.Is(e.Err, ErrBodyTooLarge)
}

// AsTransportError unwraps err to a *TransportError.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
