package models

import (
	"time"
)

// AuditEvent is the append-only trail row for one pipeline stage.
// Written in batches by the audit sink; never read back by the gateway.
type AuditEvent struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Timestamp     time.Time         `gorm:"index" json:"timestamp"`
	Operation     string            `gorm:"index" json:"operation"`
	Status        string            `gorm:"index" json:"status"`
	TenantID      string            `gorm:"index" json:"tenant_id"`
	TicketID      string            `json:"ticket_id"`
	CorrelationID string            `gorm:"index" json:"correlation_id"`
	Extra         map[string]string `gorm:"serializer:json" json:"extra,omitempty"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
