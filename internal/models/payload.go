package models

// WebhookPayload is the recognized shape of an inbound ticket notification.
// The raw request bytes, not this parsed form, are what gets signed.
type WebhookPayload struct {
	TicketID    string `json:"ticket_id"`
	TenantID    string `json:"tenant_id"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Timestamp   string `json:"timestamp"`
}
