package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ticketflow/ingress/internal/storage"
)

// FixedWindowLimiter counts requests in coarse time buckets. Cheaper than
// the sliding window but admits up to 2x the ceiling across a bucket
// boundary, so it is only offered for endpoint classes that opt in.
type FixedWindowLimiter struct {
	redis    *storage.RedisClient
	limit    int
	window   time.Duration
	failOpen bool
}

func NewFixedWindow(redis *storage.RedisClient, limit int, window time.Duration, failOpen bool) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		redis:    redis,
		limit:    limit,
		window:   window,
		failOpen: failOpen,
	}
}

func (f *FixedWindowLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	currentWindow := time.Now().Unix() / int64(f.window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:fixed:%s:%d", key, currentWindow)

	count, err := f.redis.Incr(ctx, redisKey)
	if err != nil {
		if f.failOpen {
			return Decision{Allowed: true, Degraded: true}, nil
		}
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	if count == 1 {
		f.redis.Expire(ctx, redisKey, f.window)
	}

	if count <= int64(f.limit) {
		return Decision{Allowed: true, Remaining: f.limit - int(count)}, nil
	}

	nextWindow := (currentWindow + 1) * int64(f.window.Seconds())
	retryAfter := time.Until(time.Unix(nextWindow, 0)) + time.Second
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

func (f *FixedWindowLimiter) Limit() int {
	return f.limit
}

func (f *FixedWindowLimiter) Window() time.Duration {
	return f.window
}
