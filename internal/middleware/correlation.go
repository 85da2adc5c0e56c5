package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/ticketflow/ingress/internal/audit"
)

const (
	// CorrelationHeader is accepted inbound and always set on responses.
	CorrelationHeader = "X-Correlation-ID"
	// CorrelationKey is the gin context key for the request's id.
	CorrelationKey = "correlation_id"
)

// CorrelationID adopts the caller's correlation id when it is a canonical
// uuid, otherwise generates one. Every downstream log line and the
// enqueued job carry the same value.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := audit.EnsureCorrelationID(c.GetHeader(CorrelationHeader))

		c.Set(CorrelationKey, id)
		c.Header(CorrelationHeader, id)

		c.Next()
	}
}
