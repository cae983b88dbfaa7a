package detectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a detector could not produce an opinion.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindAuthFailure       ErrorKind = "auth_failure"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindRateLimited       ErrorKind = "rate_limited"

	// KindUnavailable covers network errors, upstream 5xx responses and
	// cancelled requests.
	KindUnavailable ErrorKind = "unavailable"
)

// Error is the failure type returned by every [Detector].
type Error struct {
	Detector   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Detector == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("detector %s: %s: %v", e.Detector, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt could reasonably succeed.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindRateLimited:
		return true
	case KindUnavailable:
		return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func malformed(format string, args ...any) *Error {
	return newError(KindMalformedResponse, fmt.Errorf(format, args...))
}

// KindOf returns the ErrorKind for err. Context expiry maps to timeout and
// anything unrecognized maps to unavailable.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

// kindForStatus maps a non-2xx HTTP status to an ErrorKind.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthFailure
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}
