package ratelimit

import (
	"time"

	"github.com/ticketflow/ingress/internal/storage"
)

// NewLimiter builds the limiter for an endpoint class. The sliding window
// is the default: it never admits a boundary burst of 2x the ceiling.
func NewLimiter(redis *storage.RedisClient, algorithm string, limit int, window time.Duration, failOpen bool) Limiter {
	switch algorithm {
	case "token_bucket":
		refillRate := limit / int(window.Seconds())
		if refillRate == 0 {
			refillRate = 1
		}
		return NewTokenBucket(redis, limit, refillRate, failOpen)
	case "fixed_window":
		return NewFixedWindow(redis, limit, window, failOpen)
	default:
		return NewSlidingWindowLimiter(redis, limit, window, failOpen)
	}
}
