package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ticketflow/ingress/internal/storage"
)

// expiryMargin keeps the key alive slightly past the window so a
// concurrently pruning instance never resurrects a half-expired set.
const expiryMargin = 10 * time.Second

// slidingWindowScript prunes expired markers, counts the survivors and
// either records the new request or reports the age of the oldest marker.
// Running it as a single script makes prune+count+add atomic per key.
//
// Returns {allowed, remaining, oldest_score}. Scores are unix nanoseconds.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local expiry = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, expiry)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, 0, tonumber(oldest[2])}
`

type SlidingWindowLimiter struct {
	redis    *storage.RedisClient
	limit    int
	window   time.Duration
	failOpen bool
}

func NewSlidingWindowLimiter(redis *storage.RedisClient, limit int, window time.Duration, failOpen bool) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:    redis,
		limit:    limit,
		window:   window,
		failOpen: failOpen,
	}
}

func (s *SlidingWindowLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("ratelimit:sliding:%s", key)
	now := time.Now()

	expiry := int64((s.window + expiryMargin) / time.Second)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	result, err := s.redis.Eval(ctx, slidingWindowScript,
		[]string{redisKey},
		now.UnixNano(), s.window.Nanoseconds(), s.limit, expiry, member,
	)
	if err != nil {
		if s.failOpen {
			return Decision{Allowed: true, Degraded: true}, nil
		}
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("rate limit script returned unexpected result %v", result)
	}

	if values[0].(int64) == 1 {
		return Decision{Allowed: true, Remaining: int(values[1].(int64))}, nil
	}

	// retry_after = window - (now - oldest) + 1s, always positive.
	elapsed := time.Duration(now.UnixNano() - values[2].(int64))
	retryAfter := s.window - elapsed + time.Second
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

func (s *SlidingWindowLimiter) Limit() int {
	return s.limit
}

func (s *SlidingWindowLimiter) Window() time.Duration {
	return s.window
}
