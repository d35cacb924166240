package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCounter struct{}

func (brokenCounter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := newRateLimiter(&config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1}}, nil)
	l.now = func() time.Time { return now }

	t.Run("PerKeyBuckets", func(t *testing.T) {
		assert.True(t, l.allow(ctx, "user:1"))
		assert.False(t, l.allow(ctx, "user:1"))
		assert.True(t, l.allow(ctx, "user:2"))
	})

	t.Run("Refill", func(t *testing.T) {
		now = now.Add(time.Second)
		assert.True(t, l.allow(ctx, "user:1"))
	})

	t.Run("IdleEviction", func(t *testing.T) {
		now = now.Add(limiterIdleTTL)
		assert.True(t, l.allow(ctx, "user:3"))

		l.mu.Lock()
		defer l.mu.Unlock()
		assert.Len(t, l.entries, 1)
		assert.Contains(t, l.entries, "user:3")
	})
}

func TestRateLimiter_SharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counter := repository.NewRedisCacheRepository(client, time.Minute)

	cfg := &config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2}}
	first := newRateLimiter(cfg, counter)
	second := newRateLimiter(cfg, counter)
	assert.Equal(t, 2*time.Second, first.window)

	ctx := context.Background()
	assert.True(t, first.allow(ctx, "front:7"))
	assert.True(t, second.allow(ctx, "front:7"))
	assert.False(t, first.allow(ctx, "front:7"), "the second instance spent the shared allowance")
	assert.True(t, second.allow(ctx, "front:8"))

	mr.FastForward(3 * time.Second)
	assert.True(t, first.allow(ctx, "front:7"))

	first.mu.Lock()
	assert.Empty(t, first.entries, "local buckets stay unused while the counter answers")
	first.mu.Unlock()
}

func TestRateLimiter_FallsBackToLocalBuckets(t *testing.T) {
	l := newRateLimiter(&config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1}}, brokenCounter{})
	ctx := context.Background()

	require.True(t, l.allow(ctx, "front:1"))
	assert.False(t, l.allow(ctx, "front:1"))
}

func TestRateLimiter_DefaultBurst(t *testing.T) {
	l := newRateLimiter(&config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1}}, nil)
	assert.Equal(t, 5, l.burst)
	assert.Equal(t, 5*time.Second, l.window)
}
