package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/storage"
)

func setupGateway(t *testing.T) (*miniredis.Miniredis, *Gateway) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewGateway(storage.NewRedisFromClient(client), "enhancement_jobs")
}

func validJob(ticketID string) *models.EnhancementJob {
	return &models.EnhancementJob{
		TicketID:      ticketID,
		TenantID:      "acme",
		Description:   "printer on fire",
		Priority:      models.PriorityHigh,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: uuid.NewString(),
		Downstream: models.DownstreamConfig{
			APIEndpoint:    "https://acme.example.com/api",
			CredentialsRef: "vault:acme/ticketing",
		},
	}
}

func TestEnqueueReturnsJobIDAndDepth(t *testing.T) {
	_, gw := setupGateway(t)
	ctx := context.Background()

	jobID, depth, err := gw.Enqueue(ctx, validJob("TKT-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	_, err = uuid.Parse(jobID)
	assert.NoError(t, err, "job id must be a uuid")

	_, depth, err = gw.Enqueue(ctx, validJob("TKT-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth, "depth must reflect the just-appended entry")
}

func TestEnqueuePreservesFIFOOrder(t *testing.T) {
	_, gw := setupGateway(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _, err := gw.Enqueue(ctx, validJob(fmt.Sprintf("TKT-%d", i)))
		require.NoError(t, err)
	}

	for i := 0; i < 10; i++ {
		job, err := gw.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, fmt.Sprintf("TKT-%d", i), job.TicketID, "entries must drain in enqueue order")
	}

	job, err := gw.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job, "a drained queue yields no job")
}

func TestEnqueueConcurrentProducers(t *testing.T) {
	mr, gw := setupGateway(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _, err := gw.Enqueue(ctx, validJob(fmt.Sprintf("TKT-%d-%d", w, i)))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	depth, err := gw.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), depth, "every enqueued job must appear exactly once")

	seen := make(map[string]bool)
	for i := 0; i < workers*perWorker; i++ {
		raw, err := mr.Lpop(gw.Key())
		require.NoError(t, err)

		var job models.EnhancementJob
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		assert.False(t, seen[job.TicketID], "duplicate entry %s", job.TicketID)
		seen[job.TicketID] = true
	}
}

func TestEnqueueWireFormat(t *testing.T) {
	mr, gw := setupGateway(t)

	job := validJob("TKT-9")
	jobID, _, err := gw.Enqueue(context.Background(), job)
	require.NoError(t, err)

	raw, err := mr.Lpop(gw.Key())
	require.NoError(t, err)

	var decoded models.EnhancementJob
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	assert.Equal(t, models.JobSchemaVersion, decoded.SchemaVersion)
	assert.Equal(t, jobID, decoded.JobID)
	assert.Equal(t, "TKT-9", decoded.TicketID)
	assert.Equal(t, "acme", decoded.TenantID)
	assert.Equal(t, models.PriorityHigh, decoded.Priority)
	assert.Equal(t, job.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, "vault:acme/ticketing", decoded.Downstream.CredentialsRef)
	assert.False(t, decoded.EnqueuedAt.IsZero())
}

func TestEnqueueRejectsInvalidJob(t *testing.T) {
	mr, gw := setupGateway(t)
	ctx := context.Background()

	job := validJob("TKT-1")
	job.TenantID = ""

	_, _, err := gw.Enqueue(ctx, job)
	assert.ErrorIs(t, err, models.ErrInvalidJob)

	assert.False(t, mr.Exists(gw.Key()), "an invalid job must never reach the queue")
}

func TestEnqueueQueueUnavailable(t *testing.T) {
	mr, gw := setupGateway(t)

	mr.Close()

	_, _, err := gw.Enqueue(context.Background(), validJob("TKT-1"))
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}
