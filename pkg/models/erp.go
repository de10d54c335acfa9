package models

import "time"

// StudentView is the ERP wire representation of a student.
type StudentView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Grade     string         `json:"grade"`
	Active    bool           `json:"active"`
	BirthDate string         `json:"birth_date,omitempty"` // ISO YYYY-MM-DD
	Guardians []GuardianView `json:"guardians,omitempty"`
}

// GuardianView is the ERP wire representation of a guardian.
type GuardianView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Phone    string        `json:"phone"`
	Email    string        `json:"email,omitempty"`
	Relation string        `json:"relation"`
	Students []StudentView `json:"students,omitempty"`
}

// InstallmentView is the ERP wire representation of an installment.
type InstallmentView struct {
	ID        string       `json:"id"`
	Student   *StudentView `json:"student,omitempty"`
	StudentID string       `json:"student_id"`
	PlanID    string       `json:"plan_id"`
	Sequence  int          `json:"sequence"`
	Amount    float64      `json:"amount"`
	DueDate   string       `json:"due_date"` // ISO YYYY-MM-DD
	State     string       `json:"state"`    // pending, paid, overdue
	PayLink   string       `json:"pay_link,omitempty"`
	PaidAt    *time.Time   `json:"paid_at,omitempty"`
}

// PaymentView is the ERP wire representation of a payment.
type PaymentView struct {
	ID            string    `json:"id"`
	InstallmentID string    `json:"installment_id"`
	Amount        float64   `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
	Method        string    `json:"method"`
	Reference     string    `json:"reference,omitempty"`
}

// ConfirmPaymentRequest is the body of POST /api/v1/payments/confirm.
type ConfirmPaymentRequest struct {
	InstallmentID string  `json:"installment_id" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	Method        string  `json:"method"`
	Reference     string  `json:"reference"`
}

// ConfirmPaymentResponse is the body returned on successful confirmation.
type ConfirmPaymentResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Payment     PaymentView     `json:"payment"`
	Installment InstallmentView `json:"installment"`
}
