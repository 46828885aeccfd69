package postgres

import (
	"context"
	"errors"
	"strings"
)

// ErrDSNRequired is returned when NewStore is given an empty connection
// string.
var ErrDSNRequired = errors.New("connection string required")

// retryableFragments are lowercase substrings of connection-level failures
// worth retrying with a fresh pool. Query and constraint errors are not
// listed; retrying those wastes attempts.
var retryableFragments = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"conn closed",
	"failed to connect",
	"timeout",
	"i/o timeout",
	"no such host",
	"unexpected eof",
	"server closed",
}

// isRetryable classifies transient connection errors.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}
