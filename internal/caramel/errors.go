// Package caramel provides an HTTP client for the Caramel case/folder
// service with automatic retry, rate limiting, and error classification.
package caramel

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, caramel.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("caramel: bad request")
	ErrUnauthorized = errors.New("caramel: unauthorized")
	ErrForbidden    = errors.New("caramel: forbidden")
	ErrNotFound     = errors.New("caramel: not found")
	ErrThrottled    = errors.New("caramel: throttled")
	ErrServerError  = errors.New("caramel: server error")

	// ErrUnreachable wraps network-level failures that survived all retries.
	ErrUnreachable = errors.New("caramel: host unreachable")

	// ErrUnexpectedStatus covers non-2xx codes that have no dedicated sentinel.
	ErrUnexpectedStatus = errors.New("caramel: unexpected status")

	// ErrMalformedResponse means a 2xx body lacked the element we needed.
	ErrMalformedResponse = errors.New("caramel: malformed response")

	// ErrBadSampleSize is returned without a request when a sample amount is
	// outside 1..MaxSampleSize.
	ErrBadSampleSize = errors.New("caramel: sample size out of range")
)

// APIError wraps a sentinel error with the HTTP status code, the response
// headers, and the response body for debugging.
type APIError struct {
	StatusCode int
	Header     http.Header
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("caramel: HTTP %d (headers: %v)", e.StatusCode, e.Header)
	}

	return fmt.Sprintf("caramel: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		if code >= http.StatusOK && code < http.StatusMultipleChoices {
			return nil
		}

		return ErrUnexpectedStatus
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// maxErrorBody caps how much of an error response is kept in APIError.
const maxErrorBody = 4096
