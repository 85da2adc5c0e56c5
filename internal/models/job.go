package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobSchemaVersion is bumped whenever the queue wire format changes shape.
const JobSchemaVersion = 1

// MaxDescriptionLength bounds the free-text description carried on a job.
const MaxDescriptionLength = 4096

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var ErrInvalidJob = errors.New("invalid job")

// ParsePriority maps a caller-supplied priority onto the closed enum.
// An empty value defaults to medium.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	case "":
		return PriorityMedium, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidJob, s)
	}
}

// DownstreamConfig is the tenant-specific configuration the consuming
// worker needs; it travels with the job so the worker never has to
// resolve the tenant again.
type DownstreamConfig struct {
	APIEndpoint    string            `json:"api_endpoint"`
	CredentialsRef string            `json:"credentials_ref"`
	Preferences    map[string]string `json:"preferences,omitempty"`
}

// EnhancementJob is the versioned wire format appended to the queue.
// It is never mutated after creation.
type EnhancementJob struct {
	SchemaVersion int              `json:"schema_version"`
	JobID         string           `json:"job_id"`
	TicketID      string           `json:"ticket_id"`
	TenantID      string           `json:"tenant_id"`
	Description   string           `json:"description"`
	Priority      Priority         `json:"priority"`
	Timestamp     string           `json:"timestamp"`
	CorrelationID string           `json:"correlation_id"`
	EnqueuedAt    time.Time        `json:"enqueued_at"`
	Downstream    DownstreamConfig `json:"downstream"`
}

// Validate enforces the required-field schema before a job may be queued.
func (j *EnhancementJob) Validate() error {
	if j.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidJob)
	}
	if j.TicketID == "" {
		return fmt.Errorf("%w: ticket_id is required", ErrInvalidJob)
	}
	if len(j.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidJob, MaxDescriptionLength)
	}
	if _, err := uuid.Parse(j.JobID); err != nil {
		return fmt.Errorf("%w: job_id must be a uuid", ErrInvalidJob)
	}
	if _, err := uuid.Parse(j.CorrelationID); err != nil {
		return fmt.Errorf("%w: correlation_id must be a uuid", ErrInvalidJob)
	}
	if _, err := ParsePriority(string(j.Priority)); err != nil || j.Priority == "" {
		return fmt.Errorf("%w: priority must be one of low, medium, high, urgent", ErrInvalidJob)
	}
	if _, err := time.Parse(time.RFC3339, j.Timestamp); err != nil {
		return fmt.Errorf("%w: timestamp must be RFC3339 with offset", ErrInvalidJob)
	}
	return nil
}
