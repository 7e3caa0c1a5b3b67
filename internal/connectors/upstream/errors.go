package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// RateLimitError represents a rate limit exceeded error with reset time.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("upstream: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// HTTPStatus implements domain.StatusCoder.
func (e *RateLimitError) HTTPStatus() int {
	return http.StatusTooManyRequests
}

// Unwrap maps the error to domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// APIError represents a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// HTTPStatus implements domain.StatusCoder.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Unwrap maps the status to the matching domain sentinel.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return domain.ErrAuthInvalid
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode >= 500:
		return domain.ErrUpstreamUnavailable
	}
	return nil
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrAuthInvalid)
}

// isRetryable reports whether a failed request may succeed on retry.
func isRetryable(err error) bool {
	if IsRateLimited(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr *networkError
	return errors.As(err, &netErr)
}

// networkError wraps a transport-level failure.
type networkError struct {
	URL string
	Err error
}

func (e *networkError) Error() string {
	return fmt.Sprintf("upstream: request %s: %v", e.URL, e.Err)
}

func (e *networkError) Unwrap() []error {
	return []error{domain.ErrUpstreamUnavailable, e.Err}
}
