package models

// WebhookEvent is the envelope delivered by the ERP's outbound webhook.
type WebhookEvent struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"` // ISO 8601 UTC
	Data      map[string]interface{} `json:"data"`
}

// Webhook event types emitted by the ERP.
const (
	EventPaymentConfirmed     = "payment_confirmed"
	EventInstallmentGenerated = "installment_generated"
	EventStudentUpdated       = "student_updated"
	EventGuardianUpdated      = "guardian_updated"
)

// PaymentConfirmedData is the data payload of a payment_confirmed event.
type PaymentConfirmedData struct {
	InstallmentID string  `json:"installment_id"`
	StudentID     string  `json:"student_id"`
	Amount        float64 `json:"amount"`
	PaidAt        string  `json:"paid_at"`
}

// GuardianUpdatedData is the data payload of a guardian_updated event.
type GuardianUpdatedData struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email,omitempty"`
	Relation   string   `json:"relation"`
	StudentIDs []string `json:"student_ids,omitempty"`
}

// StudentUpdatedData is the data payload of a student_updated event.
type StudentUpdatedData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Grade  string `json:"grade"`
	Active bool   `json:"active"`
}

// InstallmentGeneratedData is the data payload of an
// installment_generated event.
type InstallmentGeneratedData struct {
	ID        string  `json:"id"`
	StudentID string  `json:"student_id"`
	Sequence  int     `json:"sequence"`
	Amount    float64 `json:"amount"`
	DueDate   string  `json:"due_date"` // ISO YYYY-MM-DD
	State     string  `json:"state"`
	PayLink   string  `json:"pay_link,omitempty"`
}

// InboundMessage is the simplified shape of an inbound WhatsApp message.
// The provider's native payload is flattened to this before processing.
type InboundMessage struct {
	FromNumber string `json:"from_number" binding:"required"`
	Text       string `json:"text" binding:"required"`
	MessageID  string `json:"message_id,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// AgentReply is the outcome of one agent run over an inbound message.
type AgentReply struct {
	Text    string `json:"text"`
	Agent   string `json:"agent"`
	Intent  Intent `json:"intent,omitempty"`
	QueryID string `json:"query_id,omitempty"`
}
