package audit

import (
	"log"
	"time"

	"github.com/ticketflow/ingress/internal/models"
	"github.com/ticketflow/ingress/internal/storage"
)

const (
	batchSize     = 100
	flushInterval = 5 * time.Second
)

// Sink batches audit events into the append-only audit table. Writes are
// fire-and-forget: when the buffer is full the event is dropped rather
// than blocking a request.
type Sink struct {
	ch chan models.AuditEvent
}

func NewSink(db *storage.Postgres, bufferSize int) *Sink {
	s := &Sink{ch: make(chan models.AuditEvent, bufferSize)}

	go func() {
		batch := make([]models.AuditEvent, 0, batchSize)
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case ev := <-s.ch:
				batch = append(batch, ev)
				if len(batch) >= batchSize {
					insertBatch(db, batch)
					batch = make([]models.AuditEvent, 0, batchSize)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					insertBatch(db, batch)
					batch = make([]models.AuditEvent, 0, batchSize)
				}
			}
		}
	}()

	return s
}

func insertBatch(db *storage.Postgres, events []models.AuditEvent) {
	if len(events) == 0 {
		return
	}

	if err := db.DB.Create(&events).Error; err != nil {
		log.Printf("Failed to insert audit events: %v", err)
	}
}

func (s *Sink) Write(ev models.AuditEvent) {
	select {
	case s.ch <- ev:
	default:
		// Buffer full, drop rather than block the admission path.
	}
}
