package redis

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"restaurant-storefront/internal/domain/ports/adapter"
)

var (
	_ adapter.RateLimiter = (*RateLimiter)(nil)
	_ adapter.RateLimiter = (*LocalRateLimiter)(nil)
	_ adapter.RateLimiter = (*FallbackRateLimiter)(nil)
)

// RateLimiter is a fixed-window counter in redis.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// DefaultLocalKeys bounds the number of buckets a LocalRateLimiter keeps.
const DefaultLocalKeys = 10000

// LocalRateLimiter is a per-process token bucket per key, used when redis is unavailable.
// limit tokens refill evenly over window, with a burst of limit.
// A bucket idle for a full window is refilled, so it is dropped; when maxKeys buckets are
// still live the least recently used one is evicted.
type LocalRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localBucket
	maxKeys   int
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	lim    *rate.Limiter
	window time.Duration
	seen   time.Time
}

func NewLocalRateLimiter() *LocalRateLimiter {
	return NewLocalRateLimiterSize(DefaultLocalKeys)
}

func NewLocalRateLimiterSize(maxKeys int) *LocalRateLimiter {
	if maxKeys <= 0 {
		maxKeys = DefaultLocalKeys
	}
	return &LocalRateLimiter{
		limiters: make(map[string]*localBucket),
		maxKeys:  maxKeys,
		now:      time.Now,
	}
}

func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	every := rate.Every(window / time.Duration(max(limit, 1)))
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= window {
		l.sweep(now)
	}
	b, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxKeys {
			l.sweep(now)
			if len(l.limiters) >= l.maxKeys {
				l.evictOldest()
			}
		}
		b = &localBucket{lim: rate.NewLimiter(every, limit)}
		l.limiters[key] = b
	} else if b.lim.Limit() != every {
		b.lim.SetLimitAt(now, every)
		b.lim.SetBurstAt(now, limit)
	}
	b.window = window
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

// sweep drops buckets untouched for their whole window.
func (l *LocalRateLimiter) sweep(now time.Time) {
	for k, b := range l.limiters {
		if now.Sub(b.seen) >= b.window {
			delete(l.limiters, k)
		}
	}
	l.lastSweep = now
}

func (l *LocalRateLimiter) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, b := range l.limiters {
		if oldestKey == "" || b.seen.Before(oldest) {
			oldestKey, oldest = k, b.seen
		}
	}
	delete(l.limiters, oldestKey)
}

// FallbackRateLimiter asks redis first and degrades to the local limiter on redis errors.
type FallbackRateLimiter struct {
	primary  adapter.RateLimiter
	fallback adapter.RateLimiter
	logger   *zerolog.Logger
}

func NewFallbackRateLimiter(primary, fallback adapter.RateLimiter, logger *zerolog.Logger) *FallbackRateLimiter {
	return &FallbackRateLimiter{primary: primary, fallback: fallback, logger: logger}
}

func (f *FallbackRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.primary != nil {
		ok, err := f.primary.Allow(ctx, key, limit, window)
		if err == nil {
			return ok, nil
		}
		f.logger.Warn().Err(err).Str("key", key).Msg("redis rate limiter unavailable; using local limiter")
	}
	return f.fallback.Allow(ctx, key, limit, window)
}
