// Package audit emits one structured event per pipeline stage, tagged
// with the request's correlation id. Recording is strictly off the
// decision path: it never fails, never blocks and never panics outward.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ticketflow/ingress/internal/models"
)

// Pipeline stage operations.
const (
	OpReceived         = "received"
	OpSecretResolved   = "secret_resolved"
	OpTenantUnknown    = "tenant_unknown"
	OpTenantInactive   = "tenant_inactive"
	OpSignatureValid   = "signature_valid"
	OpSignatureInvalid = "signature_invalid"
	OpTimestampValid   = "timestamp_valid"
	OpTimestampInvalid = "timestamp_invalid"
	OpRateAdmitted     = "rate_admitted"
	OpRateLimited      = "rate_limited"
	OpQueued           = "queued"
	OpQueueUnavailable = "queue_unavailable"
	OpRejected         = "rejected"
)

const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Fields identify the event being processed.
type Fields struct {
	TenantID      string
	TicketID      string
	CorrelationID string
	Extra         map[string]string
}

// EnsureCorrelationID returns id when it is a canonical uuid, otherwise a
// freshly generated one. The result is threaded unchanged through every
// later stage, including the enqueued job.
func EnsureCorrelationID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewString()
}

type Recorder struct {
	logger *slog.Logger
	sink   *Sink
}

// NewRecorder builds a recorder writing to logger and, when sink is
// non-nil, to the append-only audit table.
func NewRecorder(logger *slog.Logger, sink *Sink) *Recorder {
	return &Recorder{logger: logger, sink: sink}
}

// Record emits one audit event. A nil recorder is a valid no-op.
func (r *Recorder) Record(ctx context.Context, operation, status string, f Fields) {
	if r == nil {
		return
	}
	defer func() {
		// Audit failures must never surface on the admission path.
		_ = recover()
	}()

	attrs := []any{
		slog.String("operation", operation),
		slog.String("status", status),
		slog.String("tenant_id", f.TenantID),
		slog.String("ticket_id", f.TicketID),
		slog.String("correlation_id", f.CorrelationID),
	}
	for k, v := range f.Extra {
		attrs = append(attrs, slog.String(k, v))
	}

	if status == StatusOK {
		r.logger.InfoContext(ctx, "audit", attrs...)
	} else {
		r.logger.WarnContext(ctx, "audit", attrs...)
	}

	if r.sink != nil {
		r.sink.Write(models.AuditEvent{
			Timestamp:     time.Now().UTC(),
			Operation:     operation,
			Status:        status,
			TenantID:      f.TenantID,
			TicketID:      f.TicketID,
			CorrelationID: f.CorrelationID,
			Extra:         f.Extra,
		})
	}
}
