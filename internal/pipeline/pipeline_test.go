package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketflow/ingress/internal/audit"
	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/queue"
	"github.com/ticketflow/ingress/internal/ratelimit"
	"github.com/ticketflow/ingress/internal/replay"
	"github.com/ticketflow/ingress/internal/signature"
	"github.com/ticketflow/ingress/internal/storage"
	"github.com/ticketflow/ingress/internal/tenant"
)

type fakeStore struct {
	tenants map[string]*models.Tenant
}

func (f *fakeStore) FindByTenantID(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return f.tenants[tenantID], nil
}

type fixture struct {
	mr       *miniredis.Miniredis
	pipeline *Pipeline
	gateway  *queue.Gateway
	secret   []byte
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rdb := storage.NewRedisFromClient(client)

	secret := []byte("whsec_acme")
	store := &fakeStore{tenants: map[string]*models.Tenant{
		"acme": {
			TenantID:       "acme",
			SigningSecret:  secret,
			IsActive:       true,
			APIEndpoint:    "https://acme.example.com/api",
			CredentialsRef: "vault:acme/ticketing",
		},
		"globex": {
			TenantID:      "globex",
			SigningSecret: []byte("whsec_globex"),
			IsActive:      false,
		},
	}}

	resolver := tenant.NewResolver(store, rdb, time.Minute)
	guard := replay.NewGuard(300*time.Second, 30*time.Second)
	limiter := ratelimit.NewSlidingWindowLimiter(rdb, limit, time.Minute, true)
	gateway := queue.NewGateway(rdb, "enhancement_jobs")
	recorder := audit.NewRecorder(slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)

	return &fixture{
		mr:       mr,
		pipeline: New(resolver, guard, limiter, gateway, recorder),
		gateway:  gateway,
		secret:   secret,
	}
}

func (f *fixture) inbound(t *testing.T, body []byte, secret []byte) Inbound {
	t.Helper()

	sig := ""
	if secret != nil {
		var err error
		sig, err = signature.Sign(body, secret)
		require.NoError(t, err)
	}

	return Inbound{
		Body: body,
		Payload: models.WebhookPayload{
			TicketID:    "TKT-1",
			TenantID:    "acme",
			Description: "printer on fire",
			Priority:    "high",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
		TenantID:      "acme",
		Signature:     sig,
		Endpoint:      "ticket",
		CorrelationID: uuid.NewString(),
	}
}

func (f *fixture) queueLen(t *testing.T) int {
	t.Helper()
	if !f.mr.Exists(f.gateway.Key()) {
		return 0
	}
	entries, err := f.mr.List(f.gateway.Key())
	require.NoError(t, err)
	return len(entries)
}

func TestAdmitHappyPath(t *testing.T) {
	f := newFixture(t, 100)
	body := []byte(`{"ticket_id":"TKT-1","tenant_id":"acme","description":"printer on fire","priority":"high"}`)
	in := f.inbound(t, body, f.secret)

	receipt, err := f.pipeline.Admit(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.JobID)
	assert.Equal(t, in.CorrelationID, receipt.CorrelationID, "correlation id must propagate unchanged")
	assert.Equal(t, int64(1), receipt.QueueDepth)
	assert.Equal(t, 1, f.queueLen(t))
}

func TestAdmitRejectsWrongTenantSecret(t *testing.T) {
	f := newFixture(t, 100)
	body := []byte(`{"ticket_id":"TKT-1","tenant_id":"acme"}`)
	in := f.inbound(t, body, []byte("whsec_globex"))

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, 0, f.queueLen(t), "a rejected event must never reach the queue")
}

func TestAdmitRejectsMissingSignature(t *testing.T) {
	f := newFixture(t, 100)
	in := f.inbound(t, []byte(`{}`), nil)

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, ErrMissingSignature)
	assert.Equal(t, 0, f.queueLen(t))
}

func TestAdmitRejectsUnknownTenant(t *testing.T) {
	f := newFixture(t, 100)
	in := f.inbound(t, []byte(`{}`), f.secret)
	in.TenantID = "ghost"

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.Equal(t, 0, f.queueLen(t))
}

func TestAdmitRejectsInactiveTenant(t *testing.T) {
	f := newFixture(t, 100)
	in := f.inbound(t, []byte(`{}`), f.secret)
	in.TenantID = "globex"

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, tenant.ErrTenantInactive)
	assert.Equal(t, 0, f.queueLen(t))
}

func TestAdmitRejectsStaleTimestampAfterSignature(t *testing.T) {
	f := newFixture(t, 100)
	body := []byte(`{"ticket_id":"TKT-1"}`)
	in := f.inbound(t, body, f.secret)
	in.Payload.Timestamp = time.Now().UTC().Add(-10 * time.Minute).Format(time.RFC3339)

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, replay.ErrStaleTimestamp)
	assert.Equal(t, 0, f.queueLen(t))
}

func TestAdmitRateLimits(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	body := []byte(`{"ticket_id":"TKT-1"}`)

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.Admit(ctx, f.inbound(t, body, f.secret))
		require.NoError(t, err, "request %d within the ceiling", i+1)
	}

	_, err := f.pipeline.Admit(ctx, f.inbound(t, body, f.secret))

	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))
	assert.Equal(t, 3, f.queueLen(t), "the rejected request must not be queued")
}

func TestAdmitQueueUnavailable(t *testing.T) {
	f := newFixture(t, 100)
	in := f.inbound(t, []byte(`{"ticket_id":"TKT-1"}`), f.secret)

	// Redis down: the resolver falls through to the durable store, the
	// fail-open limiter admits, and the queue append fails closed.
	f.mr.Close()

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, queue.ErrQueueUnavailable)
}

func TestAdmitRejectsUnknownPriority(t *testing.T) {
	f := newFixture(t, 100)
	in := f.inbound(t, []byte(`{"ticket_id":"TKT-1"}`), f.secret)
	in.Payload.Priority = "whenever"

	_, err := f.pipeline.Admit(context.Background(), in)
	assert.ErrorIs(t, err, models.ErrInvalidJob)
	assert.Equal(t, 0, f.queueLen(t))
}
