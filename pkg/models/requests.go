package models

// CreateInteractionRequest is the input for recording one conversation row.
type CreateInteractionRequest struct {
	Phone         string                 `json:"phone"`
	InstallmentID *string                `json:"installment_id,omitempty"`
	Kind          string                 `json:"kind"`
	Text          string                 `json:"text"`
	Agent         *string                `json:"agent,omitempty"`
	Extras        map[string]interface{} `json:"extras,omitempty"`
}

// CreateTicketRequest is the input for opening an escalation ticket.
type CreateTicketRequest struct {
	StudentID  string `json:"student_id"`
	GuardianID *string `json:"guardian_id,omitempty"`
	Category   string `json:"category"`
	Reason     string `json:"reason"`
	Context    string `json:"context,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

// TicketFilter narrows the admin ticket listing. Empty fields match all.
type TicketFilter struct {
	State    string
	Category string
	Priority string
	Limit    int
}

// RespondTicketRequest is the body of the admin responder endpoint.
type RespondTicketRequest struct {
	Reply string `json:"reply" binding:"required"`
}
