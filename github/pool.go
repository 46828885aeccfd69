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


package github

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// fullQuota is GitHub's hourly core quota for an authenticated token. Used
// as the optimistic starting value and restored when a reset time passes.
const fullQuota = 5000

// maxResetWait bounds how long Acquire will sleep for a quota reset before
// handing out the earliest-resetting token anyway and letting the caller
// absorb the rate-limit error.
const maxResetWait = 60 * time.Second

// tokenState tracks one credential's quota. Mutated only under the pool lock.
type tokenState struct {
	token     string
	remaining int
	resetAt   time.Time
	valid     bool
	lastUsed  time.Time
}

// TokenPool owns a set of GitHub API credentials and rations requests across
// them under quota constraints. It is the only structure in the pipeline
// mutated from multiple workers concurrently; all quota bookkeeping is
// serialized behind its mutex.
type TokenPool struct {
	mu     sync.Mutex
	tokens []*tokenState
	logger *slog.Logger

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// ProbeFunc checks one credential against the API and returns its current
// quota. An authentication failure must return a non-nil error.
type ProbeFunc func(ctx context.Context, token string) (remaining int, resetAt time.Time, err error)

// NewTokenPool creates a pool over the given tokens. Each starts with an
// optimistic full quota; call Validate to resynchronize with the server and
// weed out bad credentials before a run.
func NewTokenPool(tokens []string) (*TokenPool, error) {
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}

	states := make([]*tokenState, len(tokens))
	for i, token := range tokens {
		states[i] = &tokenState{
			token:     token,
			remaining: fullQuota,
			valid:     true,
		}
	}

	return &TokenPool{
		tokens: states,
		logger: slog.Default().With("component", "token-pool"),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// Validate probes every credential and marks authentication failures
// invalid. Returns ErrAllTokensInvalid if no credential survives.
func (p *TokenPool) Validate(ctx context.Context, probe ProbeFunc) error {
	for i, state := range p.tokens {
		remaining, resetAt, err := probe(ctx, state.token)

		p.mu.Lock()
		if err != nil {
			state.valid = false
			p.mu.Unlock()
			p.logger.Warn("token failed validation", "index", i+1, "suffix", suffix(state.token), "err", err)
			continue
		}
		state.remaining = remaining
		state.resetAt = resetAt
		state.valid = true
		p.mu.Unlock()

		p.logger.Info("token validated", "index", i+1, "suffix", suffix(state.token), "remaining", remaining)
	}

	if p.ValidCount() == 0 {
		return ErrAllTokensInvalid
	}
	return nil
}

// Acquire returns the credential with the most remaining quota, breaking
// ties by least-recently-used. When every credential is exhausted it waits
// for the earliest reset if that is under a minute, otherwise it returns the
// earliest-resetting credential immediately. The chosen credential's counter
// is decremented optimistically; UpdateQuota resynchronizes it from server
// responses.
func (p *TokenPool) Acquire(ctx context.Context) (string, error) {
	for {
		p.mu.Lock()
		best, wait, err := p.pick()
		if err != nil {
			p.mu.Unlock()
			return "", err
		}
		if best != nil {
			best.lastUsed = p.now()
			if best.remaining > 0 {
				best.remaining--
			}
			token := best.token
			p.mu.Unlock()
			return token, nil
		}
		p.mu.Unlock()

		p.logger.Warn("all tokens exhausted, waiting for quota reset", "wait", wait)
		if err := p.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

// pick selects a usable token under the lock. It returns either a token, or
// a wait duration when all tokens are exhausted but one resets soon, or an
// error when no valid credential remains. When the minimum wait exceeds
// maxResetWait it returns the earliest-resetting token instead of waiting.
func (p *TokenPool) pick() (*tokenState, time.Duration, error) {
	now := p.now()

	var valid []*tokenState
	for _, state := range p.tokens {
		if !state.valid {
			continue
		}
		// Restore quota for tokens whose reset time has passed.
		if state.remaining <= 0 && !state.resetAt.IsZero() && now.After(state.resetAt) {
			state.remaining = fullQuota
		}
		valid = append(valid, state)
	}

	if len(valid) == 0 {
		return nil, 0, ErrAllTokensInvalid
	}

	var best *tokenState
	for _, state := range valid {
		if state.remaining <= 0 {
			continue
		}
		if best == nil ||
			state.remaining > best.remaining ||
			(state.remaining == best.remaining && state.lastUsed.Before(best.lastUsed)) {
			best = state
		}
	}
	if best != nil {
		return best, 0, nil
	}

	// All exhausted: find the earliest reset.
	earliest := valid[0]
	for _, state := range valid[1:] {
		if state.resetAt.Before(earliest.resetAt) {
			earliest = state
		}
	}

	wait := earliest.resetAt.Sub(now) + time.Second
	if wait > 0 && wait < maxResetWait {
		return nil, wait, nil
	}

	// Too long to wait (or reset already due): hand out the earliest
	// resetter and let the caller absorb the rate-limit error.
	return earliest, 0, nil
}

// UpdateQuota resynchronizes a credential's counters with server-reported
// values, typically read from X-RateLimit response headers.
func (p *TokenPool) UpdateQuota(token string, remaining int, resetAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, state := range p.tokens {
		if state.token == token {
			state.remaining = remaining
			state.resetAt = resetAt
			return
		}
	}
}

// MarkInvalid flags a credential as permanently unusable after an
// authentication failure. It is never selected again.
func (p *TokenPool) MarkInvalid(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, state := range p.tokens {
		if state.token == token {
			if state.valid {
				state.valid = false
				p.logger.Warn("token marked invalid", "suffix", suffix(token))
			}
			return
		}
	}
}

// ValidCount returns the number of credentials still considered usable.
func (p *TokenPool) ValidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, state := range p.tokens {
		if state.valid {
			count++
		}
	}
	return count
}

// TotalRemaining sums the remaining quota across valid credentials.
func (p *TokenPool) TotalRemaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, state := range p.tokens {
		if state.valid && state.remaining > 0 {
			total += state.remaining
		}
	}
	return total
}

// suffix returns the last four characters of a token for log output.
func suffix(token string) string {
	if len(token) <= 4 {
		return token
	}
	return "***" + token[len(token)-4:]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
