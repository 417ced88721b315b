package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/brogergvhs/showscrape/internal/fetch"
)

// Code is a stable failure identifier callers can switch on.
type Code string

const (
	CodeInvalidRequest      Code = "invalid_request"
	CodeUnknownSource       Code = "unknown_source"
	CodeUpstreamTimeout     Code = "upstream_timeout"
	CodeUpstreamStatus      Code = "upstream_status"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeUpstreamShape       Code = "upstream_shape"
	CodeCanceled            Code = "canceled"
	CodeInternal            Code = "internal"
)

// Failure is the only error type returned by Engine operations.
type Failure struct {
	Code    Code
	Source  string
	Message string
	// Status is the upstream HTTP status for CodeUpstreamStatus.
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Source != "" {
		return fmt.Sprintf("%s: %s: %s", f.Source, f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure unwraps err to a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func invalid(source, format string, args ...any) *Failure {
	return &Failure{Code: CodeInvalidRequest, Source: source, Message: fmt.Sprintf(format, args...)}
}

func shape(source string, err error) *Failure {
	return &Failure{Code: CodeUpstreamShape, Source: source, Message: err.Error(), Err: err}
}

// classify converts any internal error into a Failure.
func classify(source string, err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		if f.Source == "" {
			f.Source = source
		}
		return f
	}

	if te, ok := fetch.AsTransportError(err); ok {
		switch {
		case te.Canceled():
			return &Failure{Code: CodeCanceled, Source: source, Message: "request canceled", Err: err}
		case te.Timeout:
			return &Failure{Code: CodeUpstreamTimeout, Source: source, Message: "upstream did not answer in time", Err: err}
		case te.Status != 0:
			return &Failure{Code: CodeUpstreamStatus, Source: source, Status: te.Status, Message: fmt.Sprintf("upstream answered HTTP %d", te.Status), Err: err}
		default:
			return &Failure{Code: CodeUpstreamUnavailable, Source: source, Message: "upstream unavailable", Err: err}
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &Failure{Code: CodeCanceled, Source: source, Message: "request canceled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Code: CodeUpstreamTimeout, Source: source, Message: "deadline exceeded", Err: err}
	}
	return &Failure{Code: CodeInternal, Source: source, Message: "internal error", Err: err}
}
