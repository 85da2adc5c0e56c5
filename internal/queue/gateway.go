// Package queue hands validated jobs to the durable FIFO queue the
// enhancement workers drain. It only ever appends; claiming and
// acknowledging entries is the worker pool's side of the contract.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/storage"
)

// ErrQueueUnavailable covers any connectivity or timeout failure from the
// backing store. The admission path fails closed on it.
var ErrQueueUnavailable = errors.New("queue: backing store unavailable")

type Gateway struct {
	redis *storage.RedisClient
	name  string
}

func NewGateway(redis *storage.RedisClient, name string) *Gateway {
	return &Gateway{redis: redis, name: name}
}

// Enqueue validates the job, serializes it and appends it to the tail of
// the queue. RPUSH returns the post-append list length, so the reported
// depth is atomic with the append; consumers LPOP from the head, which
// gives strict FIFO order under concurrent producers.
func (g *Gateway) Enqueue(ctx context.Context, job *models.EnhancementJob) (string, int64, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.SchemaVersion == 0 {
		job.SchemaVersion = models.JobSchemaVersion
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	if err := job.Validate(); err != nil {
		return "", 0, err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", models.ErrInvalidJob, err)
	}

	depth, err := g.redis.RPush(ctx, g.Key(), payload)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	return job.JobID, depth, nil
}

// Dequeue claims the head entry, which is always the oldest. A nil job
// with a nil error means the queue is empty.
func (g *Gateway) Dequeue(ctx context.Context) (*models.EnhancementJob, error) {
	raw, err := g.redis.LPop(ctx, g.Key())
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	var job models.EnhancementJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidJob, err)
	}

	return &job, nil
}

// Depth reports the current queue length, an observability signal only.
func (g *Gateway) Depth(ctx context.Context) (int64, error) {
	depth, err := g.redis.LLen(ctx, g.Key())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return depth, nil
}

func (g *Gateway) Key() string {
	return "queue:" + g.name
}
