package api

import (
	"context"
	"sync"
	"time"

	"rentescrow/internal/config"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused bucket survives. Keys carry the user
// id, so without eviction the map grows with every caller ever seen.
const limiterIdleTTL = 10 * time.Minute

// RateCounter is a fixed-window counter shared by every API instance.
type RateCounter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client key. With a shared counter the
// limit holds across instances; the local buckets take over when it fails.
type rateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	shared    RateCounter
	window    time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func newRateLimiter(cfg *config.APIConfig, shared RateCounter) *rateLimiter {
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	l := &rateLimiter{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(cfg.RateLimit.RPS),
		burst:   burst,
		shared:  shared,
		now:     time.Now,
	}
	if cfg.RateLimit.RPS > 0 {
		// окно, за которое пустой бакет наполняется целиком
		l.window = time.Duration(float64(burst) / cfg.RateLimit.RPS * float64(time.Second))
	}
	return l
}

// allow consumes one request of key's allowance.
func (l *rateLimiter) allow(ctx context.Context, key string) bool {
	if l.shared != nil && l.window > 0 {
		ok, err := l.shared.CheckRateLimit(ctx, "api:"+key, l.burst, l.window)
		if err == nil {
			return ok
		}
	}
	return l.allowLocal(key)
}

func (l *rateLimiter) allowLocal(key string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastPrune) >= limiterIdleTTL {
		l.prune(now)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.lim.AllowN(now, 1)
}

// prune drops idle buckets; caller holds mu.
func (l *rateLimiter) prune(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) >= limiterIdleTTL {
			delete(l.entries, key)
		}
	}
	l.lastPrune = now
}
