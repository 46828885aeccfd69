package github

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNoTokens is returned when the pool is constructed without any tokens.
	ErrNoTokens = errors.New("at least one GitHub token is required")

	// ErrAllTokensInvalid is returned when every credential has failed
	// authentication. This is fatal for the run.
	ErrAllTokensInvalid = errors.New("all GitHub tokens are invalid")

	// ErrNotFound is returned for 404 responses on content lookups.
	ErrNotFound = errors.New("not found")
)

// StatusError reports a non-2xx response from the GitHub API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether an error is worth retrying with backoff:
// timeouts, connection resets, 502/503/504 responses, and rate-limit
// responses. The pool's pre-emptive waiting absorbs primary quota
// exhaustion, but secondary rate limits surface mid-request as 429 or 403
// and have to back off here.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 502, 503, 504:
			return true
		}
		return IsRateLimited(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "timeout")
}

// IsRateLimited reports whether an error is a quota/rate response (429, or
// GitHub's 403 secondary rate limiting).
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == 429 {
			return true
		}
		if statusErr.StatusCode == 403 && strings.Contains(strings.ToLower(statusErr.Body), "rate limit") {
			return true
		}
	}
	return false
}
