// Package models contains the wire and domain structures shared across
// services: agent plans and reports, ERP views, webhook payloads.
package models

// Intent classifies an inbound message. Emitted by the manager LLM.
type Intent string

const (
	IntentFinancialQuery     Intent = "financial_query"
	IntentPaymentRequest     Intent = "payment_request"
	IntentPaymentClaim       Intent = "payment_claim"
	IntentComplaint          Intent = "complaint"
	IntentWithdrawalRequest  Intent = "withdrawal_request"
	IntentPlanRequest        Intent = "plan_request"
	IntentInstitutionalQuery Intent = "institutional_query"
	IntentGreeting           Intent = "greeting"
	IntentOther              Intent = "other"
)

// SpecialistKind identifies a specialist subgraph. The manager's plan steps
// carry the variant tag; dispatch is a switch, not dynamic lookup.
type SpecialistKind string

const (
	SpecialistFinancial      SpecialistKind = "financial"
	SpecialistAdministrative SpecialistKind = "administrative"
	SpecialistInstitutional  SpecialistKind = "institutional"
)

// PlanStep is one strategic step of a MasterPlan.
type PlanStep struct {
	Specialist SpecialistKind         `json:"specialist"`
	Goal       string                 `json:"goal"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Priority   int                    `json:"priority,omitempty"`
}

// MasterPlan is the strategic plan emitted by the manager LLM.
type MasterPlan struct {
	Intent        Intent     `json:"intent"`
	Confidence    float64    `json:"confidence"`
	Steps         []PlanStep `json:"steps"`
	RequiresHuman bool       `json:"requires_human"`
	Reasoning     string     `json:"reasoning,omitempty"`
}

// ToolAction is one tactical action of a SubPlan.
type ToolAction struct {
	Tool        string                 `json:"tool"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// SubPlan is the tactical plan emitted by a specialist LLM.
type SubPlan struct {
	Actions   []ToolAction `json:"actions"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// SpecialistReport is the structured result of one specialist run. It feeds
// both the synthesizer and the replan decision.
type SpecialistReport struct {
	Specialist     SpecialistKind         `json:"specialist"`
	Success        bool                   `json:"success"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Summary        string                 `json:"summary"`
	Error          string                 `json:"error,omitempty"`
	RequiresReplan bool                   `json:"requires_replan"`
}

// UserContext is the guardian context loaded at the start of a run.
type UserContext struct {
	GuardianID string           `json:"guardian_id"`
	Name       string           `json:"name"`
	Phone      string           `json:"phone"`
	Students   []StudentSummary `json:"students,omitempty"`
}

// StudentSummary is the slimmed student view embedded in UserContext.
type StudentSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Grade string `json:"grade"`
}
