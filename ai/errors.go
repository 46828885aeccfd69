package ai

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrBackendRequired is returned when a backend is not provided.
	ErrBackendRequired = errors.New("backend required")

	// ErrClientClosed is returned for calls made after Close.
	ErrClientClosed = errors.New("llm client closed")

	// ErrEmptyCompletion is returned when the provider produced no content.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrUnknownProvider is returned for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// retryableFragments are provider error substrings that indicate a
// transient condition worth requeueing.
var retryableFragments = []string{
	"429",
	"rate limit",
	"too many requests",
	"overloaded",
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"status code: 5",
	"unexpected eof",
}

// IsRetryable reports whether an LLM call failure should be requeued.
// Providers surface HTTP details inside error strings, so classification is
// necessarily textual; timeouts are recognized structurally first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
