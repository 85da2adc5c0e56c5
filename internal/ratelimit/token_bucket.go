package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ticketflow/ingress/internal/storage"
)

type TokenBucket struct {
	redis       *storage.RedisClient
	capacity    int // Total capacity of the bucket
	refillRate  int // Tokens per second
	refillEvery time.Duration
	failOpen    bool
}

type bucketState struct {
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

func NewTokenBucket(rdb *storage.RedisClient, capacity, refillRate int, failOpen bool) *TokenBucket {
	return &TokenBucket{
		redis:       rdb,
		capacity:    capacity,
		refillRate:  refillRate,
		refillEvery: time.Second,
		failOpen:    failOpen,
	}
}

func (t *TokenBucket) Admit(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("ratelimit:bucket:%s", key)
	now := time.Now()

	data, err := t.redis.Get(ctx, redisKey)

	var state bucketState
	switch {
	case err == redis.Nil:
		state = bucketState{Tokens: float64(t.capacity), LastRefill: now}
	case err != nil:
		if t.failOpen {
			return Decision{Allowed: true, Degraded: true}, nil
		}
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	default:
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			state = bucketState{Tokens: float64(t.capacity), LastRefill: now}
		}
	}

	// Refill based on elapsed time
	elapsed := now.Sub(state.LastRefill).Seconds()
	state.Tokens = math.Min(float64(t.capacity), state.Tokens+elapsed*float64(t.refillRate))
	state.LastRefill = now

	allowed := state.Tokens >= 1
	if allowed {
		state.Tokens--
	}

	encoded, _ := json.Marshal(state)
	ttl := time.Duration(t.capacity/t.refillRate+1) * time.Second
	if err := t.redis.Set(ctx, redisKey, encoded, ttl); err != nil {
		if t.failOpen {
			return Decision{Allowed: true, Degraded: true}, nil
		}
		return Decision{}, fmt.Errorf("rate limit state update failed: %w", err)
	}

	if allowed {
		return Decision{Allowed: true, Remaining: int(state.Tokens)}, nil
	}

	deficit := 1 - state.Tokens
	retryAfter := time.Duration(math.Ceil(deficit/float64(t.refillRate))) * time.Second
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

func (t *TokenBucket) Limit() int {
	return t.capacity
}

func (t *TokenBucket) Window() time.Duration {
	return time.Duration(t.capacity/t.refillRate) * time.Second
}
