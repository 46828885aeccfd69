package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, tokens ...string) *TokenPool {
	t.Helper()
	pool, err := NewTokenPool(tokens)
	require.NoError(t, err)
	return pool
}

func TestNewTokenPool(t *testing.T) {
	t.Run("requires at least one token", func(t *testing.T) {
		_, err := NewTokenPool(nil)
		assert.ErrorIs(t, err, ErrNoTokens)
	})

	t.Run("starts with optimistic full quota", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		assert.Equal(t, 2*fullQuota, pool.TotalRemaining())
		assert.Equal(t, 2, pool.ValidCount())
	})
}

func TestPoolValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("syncs quota from probe", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		err := pool.Validate(ctx, func(ctx context.Context, token string) (int, time.Time, error) {
			if token == "tok-a" {
				return 100, time.Now().Add(time.Hour), nil
			}
			return 200, time.Now().Add(time.Hour), nil
		})
		require.NoError(t, err)
		assert.Equal(t, 300, pool.TotalRemaining())
	})

	t.Run("marks failing tokens invalid", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		err := pool.Validate(ctx, func(ctx context.Context, token string) (int, time.Time, error) {
			if token == "tok-a" {
				return 0, time.Time{}, errors.New("bad credentials")
			}
			return 50, time.Now().Add(time.Hour), nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, pool.ValidCount())
	})

	t.Run("fatal when every token fails", func(t *testing.T) {
		pool := newTestPool(t, "tok-a")
		err := pool.Validate(ctx, func(ctx context.Context, token string) (int, time.Time, error) {
			return 0, time.Time{}, errors.New("bad credentials")
		})
		assert.ErrorIs(t, err, ErrAllTokensInvalid)
	})
}

func TestPoolAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("picks highest remaining quota", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		pool.UpdateQuota("tok-a", 10, time.Now().Add(time.Hour))
		pool.UpdateQuota("tok-b", 500, time.Now().Add(time.Hour))

		token, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-b", token)
	})

	t.Run("ties broken by least recently used", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		reset := time.Now().Add(time.Hour)
		pool.UpdateQuota("tok-a", 100, reset)
		pool.UpdateQuota("tok-b", 100, reset)

		first, err := pool.Acquire(ctx)
		require.NoError(t, err)

		// Re-level the quotas so only recency differs.
		pool.UpdateQuota("tok-a", 100, reset)
		pool.UpdateQuota("tok-b", 100, reset)

		second, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("optimistically decrements", func(t *testing.T) {
		pool := newTestPool(t, "tok-a")
		pool.UpdateQuota("tok-a", 2, time.Now().Add(time.Hour))

		_, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pool.TotalRemaining())
	})

	t.Run("never selects invalid token", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		pool.MarkInvalid("tok-a")

		for range 5 {
			token, err := pool.Acquire(ctx)
			require.NoError(t, err)
			assert.Equal(t, "tok-b", token)
		}
	})

	t.Run("all invalid is fatal", func(t *testing.T) {
		pool := newTestPool(t, "tok-a")
		pool.MarkInvalid("tok-a")

		_, err := pool.Acquire(ctx)
		assert.ErrorIs(t, err, ErrAllTokensInvalid)
	})

	t.Run("waits for earliest reset when exhausted", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		current := base
		pool.now = func() time.Time { return current }

		var slept time.Duration
		pool.sleep = func(ctx context.Context, d time.Duration) error {
			slept = d
			current = current.Add(d) // simulate the wait passing
			return nil
		}

		// Both exhausted: tok-a resets in 10s, tok-b in 30s.
		pool.UpdateQuota("tok-a", 0, base.Add(10*time.Second))
		pool.UpdateQuota("tok-b", 0, base.Add(30*time.Second))

		token, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-a", token)
		assert.LessOrEqual(t, slept, 11*time.Second)
		assert.Greater(t, slept, time.Duration(0))
	})

	t.Run("long reset returns earliest token without waiting", func(t *testing.T) {
		pool := newTestPool(t, "tok-a", "tok-b")
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		pool.now = func() time.Time { return base }
		pool.sleep = func(ctx context.Context, d time.Duration) error {
			t.Fatal("should not sleep for long resets")
			return nil
		}

		pool.UpdateQuota("tok-a", 0, base.Add(10*time.Minute))
		pool.UpdateQuota("tok-b", 0, base.Add(30*time.Minute))

		token, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-a", token)
	})

	t.Run("restores quota after reset passes", func(t *testing.T) {
		pool := newTestPool(t, "tok-a")
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		pool.now = func() time.Time { return base }

		pool.UpdateQuota("tok-a", 0, base.Add(-time.Minute))

		token, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-a", token)
		assert.Equal(t, fullQuota-1, pool.TotalRemaining())
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		pool := newTestPool(t, "tok-a")
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		pool.now = func() time.Time { return base }
		pool.UpdateQuota("tok-a", 0, base.Add(5*time.Second))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := pool.Acquire(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
