// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidMaxAttempts is returned when a policy allows zero attempts.
var ErrInvalidMaxAttempts = errors.New("max attempts must be > 0")

// Classifier decides whether an error is worth retrying. A nil Classifier
// retries every error.
type Classifier func(err error) bool

// Policy bounds a retryable operation.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (must be > 0).
	MaxAttempts int

	// BaseDelay is the delay after the first failure; it doubles on each
	// subsequent retry.
	BaseDelay time.Duration

	// MaxDelay caps the per-retry delay. Zero means no cap.
	MaxDelay time.Duration

	// Retryable classifies errors. Non-retryable errors propagate
	// immediately without consuming further attempts.
	Retryable Classifier
}

// Do runs operation under the policy, sleeping with exponential backoff
// between retryable failures. It returns nil on the first success, the
// context error if ctx is cancelled while waiting, and otherwise the error
// from the last attempt.
func Do(ctx context.Context, policy Policy, operation func() error) error {
	if policy.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if policy.Retryable != nil && !policy.Retryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		delay := Delay(policy.BaseDelay, attempt)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Delay returns the exponential backoff delay for a 1-based attempt number:
// base * 2^(attempt-1).
func Delay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
