// Package pipeline implements the admission pipeline: secret resolution,
// signature verification, replay validation, rate limiting and queue
// hand-off, in that order. A rejected event never reaches the queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ticketflow/ingress/internal/audit"
	"github.com/ticketflow/ingress/internal/metrics"
	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/queue"
	"github.com/ticketflow/ingress/internal/ratelimit"
	"github.com/ticketflow/ingress/internal/replay"
	"github.com/ticketflow/ingress/internal/signature"
	"github.com/ticketflow/ingress/internal/tenant"
)

// Inbound is one webhook event as received. Body is the raw request
// bytes; TenantID is the extracted, still untrusted, tenant identity.
type Inbound struct {
	Body          []byte
	Payload       models.WebhookPayload
	TenantID      string
	Signature     string
	Endpoint      string
	CorrelationID string
}

// Receipt is returned to the caller on successful admission.
type Receipt struct {
	JobID         string
	CorrelationID string
	QueueDepth    int64
}

// stageTimeout bounds each external-store call independently. A timeout
// follows the same failure policy as a connectivity failure for that
// stage; no stage retries internally.
const stageTimeout = 2 * time.Second

type Pipeline struct {
	resolver *tenant.Resolver
	guard    *replay.Guard
	limiter  ratelimit.Limiter
	gateway  *queue.Gateway
	recorder *audit.Recorder
}

func New(resolver *tenant.Resolver, guard *replay.Guard, limiter ratelimit.Limiter, gateway *queue.Gateway, recorder *audit.Recorder) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		guard:    guard,
		limiter:  limiter,
		gateway:  gateway,
		recorder: recorder,
	}
}

// Admit runs the full admission pipeline. The extracted tenant id is
// untrusted until the signature check confirms possession of that
// tenant's secret; it is used for the secret lookup and nothing else
// beforehand. Every rejection produces exactly one terminal audit event.
func (p *Pipeline) Admit(ctx context.Context, in Inbound) (*Receipt, error) {
	fields := audit.Fields{
		TenantID:      in.TenantID,
		TicketID:      in.Payload.TicketID,
		CorrelationID: in.CorrelationID,
	}

	p.recorder.Record(ctx, audit.OpReceived, audit.StatusOK, fields)

	// Stage 1: tenant secret resolution (fail-closed).
	resolveCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	cfg, err := p.resolver.Resolve(resolveCtx, in.TenantID)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			p.reject(ctx, audit.OpTenantUnknown, fields, "tenant_unknown")
		case errors.Is(err, tenant.ErrTenantInactive):
			p.reject(ctx, audit.OpTenantInactive, fields, "tenant_inactive")
		default:
			p.reject(ctx, audit.OpRejected, fields, "secret_store_unavailable")
		}
		return nil, err
	}
	p.recorder.Record(ctx, audit.OpSecretResolved, audit.StatusOK, fields)

	// Stage 2: signature verification over the raw bytes.
	if in.Signature == "" {
		p.reject(ctx, audit.OpSignatureInvalid, fields, "signature_missing")
		return nil, ErrMissingSignature
	}
	valid, err := signature.Verify(in.Body, cfg.SigningSecret, in.Signature)
	if err != nil {
		// Empty secret is a provisioning bug; fail closed and loud.
		p.reject(ctx, audit.OpRejected, fields, "secret_misconfigured")
		return nil, err
	}
	if !valid {
		p.reject(ctx, audit.OpSignatureInvalid, fields, "signature_mismatch")
		return nil, ErrInvalidSignature
	}
	p.recorder.Record(ctx, audit.OpSignatureValid, audit.StatusOK, fields)

	// Stage 3: replay window. Runs after the signature check so a
	// timestamp fix-up cannot be used to probe signatures.
	if _, err := p.guard.Check(in.Payload.Timestamp); err != nil {
		p.reject(ctx, audit.OpTimestampInvalid, fields, "timestamp_invalid")
		return nil, err
	}
	p.recorder.Record(ctx, audit.OpTimestampValid, audit.StatusOK, fields)

	// Stage 4: sliding-window rate limit per (tenant, endpoint).
	limitCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	decision, err := p.limiter.Admit(limitCtx, fmt.Sprintf("%s:%s", cfg.TenantID, in.Endpoint))
	cancel()
	if err != nil {
		// Fail-closed limiter configuration surfaces the store error.
		p.reject(ctx, audit.OpRejected, fields, "rate_limit_store_unavailable")
		return nil, err
	}
	if !decision.Allowed {
		metrics.RateLimitHits.WithLabelValues(cfg.TenantID).Inc()
		limited := fields
		limited.Extra = map[string]string{
			"retry_after": strconv.Itoa(int(decision.RetryAfter.Seconds())),
		}
		p.recorder.Record(ctx, audit.OpRateLimited, audit.StatusRejected, limited)
		metrics.RejectionsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	admitted := fields
	if decision.Degraded {
		admitted.Extra = map[string]string{"degraded": "true"}
	}
	p.recorder.Record(ctx, audit.OpRateAdmitted, audit.StatusOK, admitted)

	// Stage 5: queue hand-off (fail-closed).
	priority, err := models.ParsePriority(in.Payload.Priority)
	if err != nil {
		p.reject(ctx, audit.OpRejected, fields, "invalid_priority")
		return nil, err
	}

	job := &models.EnhancementJob{
		TicketID:      in.Payload.TicketID,
		TenantID:      cfg.TenantID,
		Description:   in.Payload.Description,
		Priority:      priority,
		Timestamp:     in.Payload.Timestamp,
		CorrelationID: in.CorrelationID,
		Downstream: models.DownstreamConfig{
			APIEndpoint:    cfg.APIEndpoint,
			CredentialsRef: cfg.CredentialsRef,
			Preferences:    cfg.Preferences,
		},
	}

	queueCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	jobID, depth, err := p.gateway.Enqueue(queueCtx, job)
	cancel()
	if err != nil {
		if errors.Is(err, queue.ErrQueueUnavailable) {
			p.reject(ctx, audit.OpQueueUnavailable, fields, "queue_unavailable")
		} else {
			p.reject(ctx, audit.OpRejected, fields, "job_invalid")
		}
		return nil, err
	}

	metrics.QueueDepth.Set(float64(depth))
	queued := fields
	queued.Extra = map[string]string{
		"job_id":      jobID,
		"queue_depth": strconv.FormatInt(depth, 10),
	}
	p.recorder.Record(ctx, audit.OpQueued, audit.StatusOK, queued)

	return &Receipt{
		JobID:         jobID,
		CorrelationID: in.CorrelationID,
		QueueDepth:    depth,
	}, nil
}

func (p *Pipeline) reject(ctx context.Context, op string, fields audit.Fields, reason string) {
	rejected := fields
	rejected.Extra = map[string]string{"reason": reason}
	p.recorder.Record(ctx, op, audit.StatusRejected, rejected)
	metrics.RejectionsTotal.WithLabelValues(reason).Inc()
}
