package opensky

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Reason is the classification of an upstream failure.
type Reason string

const (
	// ReasonRateLimited means the upstream answered HTTP 429
	ReasonRateLimited Reason = "rate_limited"

	// ReasonUnavailable covers every other failure: network errors,
	// authentication failures, bad status codes and malformed bodies
	ReasonUnavailable Reason = "unavailable"
)

// RateLimitError represents an HTTP 429 rate limit error with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains rate limit information from response headers.
// OpenSky reports the remaining credits in X-Rate-Limit-Remaining and the
// wait in X-Rate-Limit-Retry-After-Seconds.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit: Maximum requests allowed
	Remaining int       // X-Rate-Limit-Remaining: Requests remaining in current window
	Reset     time.Time // X-Rate-Limit-Reset: When the rate limit resets
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// UnavailableError is any non rate-limit upstream failure.
type UnavailableError struct {
	// StatusCode is 0 when no HTTP response was received
	StatusCode int

	// Message is safe to show to a user
	Message string

	// Details is the upstream body or the underlying error text
	Details string

	Err error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.StatusCode, e.Details)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks if an error is (or wraps) a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// Classify maps any upstream error to a Reason.
func Classify(err error) Reason {
	if _, ok := IsRateLimitError(err); ok {
		return ReasonRateLimited
	}
	return ReasonUnavailable
}

// parseRetryAfter extracts the wait from Retry-After or OpenSky's
// X-Rate-Limit-Retry-After-Seconds header.
// Returns the duration to wait, or 0 if neither header is present.
// Supports both delay-seconds (integer) and HTTP-date formats.
//
// Examples:
//
//	Retry-After: 30                           -> 30 seconds
//	Retry-After: Wed, 21 Oct 2015 07:28:00 GMT -> duration until that time
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		retryAfter = headers.Get("X-Rate-Limit-Retry-After-Seconds")
	}
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}

	return 0
}

// extractRateLimitHeaders reads the common rate limit headers.
// Missing numeric values are reported as -1.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{
		Limit:     headerInt(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"),
		Remaining: headerInt(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"),
	}

	for _, name := range []string{"X-Rate-Limit-Reset", "X-RateLimit-Reset"} {
		if reset := headers.Get(name); reset != "" {
			if ts, err := strconv.ParseInt(reset, 10, 64); err == nil {
				rlh.Reset = time.Unix(ts, 0)
			}
			break
		}
	}

	return rlh
}

// headerInt returns the first header that is present, parsed as an int.
func headerInt(headers http.Header, names ...string) int {
	for _, name := range names {
		v := headers.Get(name)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return -1
	}
	return -1
}
