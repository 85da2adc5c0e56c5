package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ticketflow/ingress/internal/audit"
	"github.com/ticketflow/ingress/internal/config"
	"github.com/ticketflow/ingress/internal/metrics"
	"github.com/ticketflow/ingress/internal/middleware"
	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/pipeline"
	"github.com/ticketflow/ingress/internal/queue"
	"github.com/ticketflow/ingress/internal/replay"
	"github.com/ticketflow/ingress/internal/signature"
	"github.com/ticketflow/ingress/internal/tenant"
)

const (
	tenantHeader = "X-Tenant-ID"
	endpointName = "ticket"

	// queueRetryHint is the Retry-After sent with 503s; the store outage
	// policy is "caller retries", not internal retries.
	queueRetryHint = 5
)

type WebhookHandler struct {
	pipeline *pipeline.Pipeline
	recorder *audit.Recorder
	cfg      *config.Config
}

func NewWebhookHandler(p *pipeline.Pipeline, recorder *audit.Recorder, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{pipeline: p, recorder: recorder, cfg: cfg}
}

// Receive is the admission endpoint for ticket notifications.
func (h *WebhookHandler) Receive(c *gin.Context) {
	start := time.Now()
	correlationID := c.GetString(middleware.CorrelationKey)

	maxBody := h.cfg.Admission.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 * 1024
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody+1))
	if err != nil {
		h.rejectBody(c, "body_read_failed", "Failed to read request body")
		return
	}
	if int64(len(body)) > maxBody {
		h.rejectBody(c, "body_too_large", "Request body too large")
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.rejectBody(c, "malformed_body", "Malformed JSON payload")
		return
	}

	in := pipeline.Inbound{
		Body:          body,
		Payload:       payload,
		TenantID:      h.extractTenantID(c, payload),
		Signature:     c.GetHeader(signature.Header),
		Endpoint:      endpointName,
		CorrelationID: correlationID,
	}

	receipt, err := h.pipeline.Admit(c.Request.Context(), in)
	metrics.AdmissionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		h.reject(c, err)
		return
	}

	metrics.EventsTotal.WithLabelValues(endpointName, "accepted").Inc()
	c.JSON(http.StatusAccepted, gin.H{
		"status":         "accepted",
		"job_id":         receipt.JobID,
		"correlation_id": receipt.CorrelationID,
		"message":        "Ticket notification queued for enhancement",
	})
}

// extractTenantID tries the payload field, then the header, then a bearer
// token claim, then the configured default. The result is untrusted until
// the signature check binds it to the tenant's secret; it is only ever
// used to look that secret up.
func (h *WebhookHandler) extractTenantID(c *gin.Context, payload models.WebhookPayload) string {
	if payload.TenantID != "" {
		return payload.TenantID
	}

	if v := strings.TrimSpace(c.GetHeader(tenantHeader)); v != "" {
		return v
	}

	if claim := tenantClaimFromBearer(c.GetHeader("Authorization")); claim != "" {
		return claim
	}

	return h.cfg.Admission.DefaultTenantID
}

// tenantClaimFromBearer pulls the tenant_id claim out of a bearer token
// without verifying it. The claim is a lookup hint only; authentication
// happens in the signature stage.
func tenantClaimFromBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(parts[1], claims); err != nil {
		return ""
	}

	if v, ok := claims["tenant_id"].(string); ok {
		return v
	}
	return ""
}

// rejectBody covers rejections that happen before the pipeline runs.
// They still carry exactly one audit event with the failure reason.
func (h *WebhookHandler) rejectBody(c *gin.Context, reason, message string) {
	h.recorder.Record(c.Request.Context(), audit.OpRejected, audit.StatusRejected, audit.Fields{
		CorrelationID: c.GetString(middleware.CorrelationKey),
		Extra:         map[string]string{"reason": reason},
	})
	metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	h.respond(c, http.StatusUnprocessableEntity, "validation_failed", message)
}

func (h *WebhookHandler) reject(c *gin.Context, err error) {
	var limited *pipeline.RateLimitedError

	switch {
	case errors.Is(err, pipeline.ErrMissingSignature), errors.Is(err, pipeline.ErrInvalidSignature):
		// Generic message: no oracle for which part of auth failed.
		h.respond(c, http.StatusUnauthorized, "unauthorized", "Invalid signature")

	case errors.Is(err, tenant.ErrTenantNotFound):
		h.respond(c, http.StatusNotFound, "tenant_unknown", "Unknown tenant")

	case errors.Is(err, tenant.ErrTenantInactive):
		h.respond(c, http.StatusForbidden, "tenant_inactive", "Tenant is inactive")

	case errors.Is(err, replay.ErrNoTimezone):
		h.respond(c, http.StatusUnprocessableEntity, "validation_failed", "Timestamp must include an explicit timezone offset")

	case errors.Is(err, replay.ErrStaleTimestamp):
		h.respond(c, http.StatusUnprocessableEntity, "validation_failed", "Timestamp is too old")

	case errors.Is(err, replay.ErrFutureTimestamp):
		h.respond(c, http.StatusUnprocessableEntity, "validation_failed", "Timestamp is too far in the future")

	case errors.Is(err, replay.ErrBadTimestamp):
		h.respond(c, http.StatusUnprocessableEntity, "validation_failed", "Timestamp is not a valid RFC3339 value")

	case errors.Is(err, models.ErrInvalidJob):
		h.respond(c, http.StatusUnprocessableEntity, "validation_failed", err.Error())

	case errors.As(err, &limited):
		retryAfter := int(limited.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		metrics.EventsTotal.WithLabelValues(endpointName, "rate_limited").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          "Rate limit exceeded",
			"retry_after":    retryAfter,
			"correlation_id": c.GetString(middleware.CorrelationKey),
		})

	case errors.Is(err, queue.ErrQueueUnavailable):
		c.Header("Retry-After", strconv.Itoa(queueRetryHint))
		h.respond(c, http.StatusServiceUnavailable, "queue_unavailable", "Queue temporarily unavailable")

	default:
		// Secret store failure and other infrastructure errors: the
		// authentication path fails closed and the caller retries.
		c.Header("Retry-After", strconv.Itoa(queueRetryHint))
		h.respond(c, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
	}
}

// respond writes the error body; label is the symbolic outcome used for
// the events metric, one vocabulary with "accepted" and "rate_limited".
func (h *WebhookHandler) respond(c *gin.Context, status int, label, message string) {
	metrics.EventsTotal.WithLabelValues(endpointName, label).Inc()
	c.JSON(status, gin.H{
		"error":          message,
		"correlation_id": c.GetString(middleware.CorrelationKey),
	})
}
