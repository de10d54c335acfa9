// Package agent implements the hierarchical planner runtime: a directed
// graph of nodes over a mutable per-request state, with a manager LLM that
// plans, specialist subgraphs that execute tools, and a synthesizer that
// produces the final user-facing message.
package agent

import (
	"github.com/colegio-digital/gestor/pkg/models"
)

// Node names. The runner persists state after each transition, so node
// names are part of the checkpoint format.
const (
	NodeLoadContext       = "load_context"
	NodeManager           = "manager"
	NodeExecuteSpecialist = "execute_specialist"
	NodeEvaluate          = "evaluate"
	NodeSynthesize        = "synthesize"
	NodeDone              = "done"
)

// State is the mutable per-request state threaded through the node graph.
// JSON-serializable so runs survive process restarts via the checkpointer.
type State struct {
	Phone   string `json:"phone"`
	Text    string `json:"text"`
	QueryID string `json:"query_id"`
	Node    string `json:"node"`

	UserContext *models.UserContext       `json:"user_context,omitempty"`
	Plan        *models.MasterPlan        `json:"plan,omitempty"`
	Cursor      int                       `json:"cursor"`
	Reports     []models.SpecialistReport `json:"reports,omitempty"`
	ReplanCount int                       `json:"replan_count"`
	NeedsReplan bool                      `json:"needs_replan"`

	FinalResponse string                 `json:"final_response,omitempty"`
	ErrMsg        string                 `json:"error,omitempty"`
	Memory        map[string]interface{} `json:"memory,omitempty"`
}

// NewState starts a fresh run at the load_context node.
func NewState(queryID, phone, text string) *State {
	return &State{
		Phone:   phone,
		Text:    text,
		QueryID: queryID,
		Node:    NodeLoadContext,
		Memory:  map[string]interface{}{},
	}
}

// LastReport returns the most recent specialist report, or nil.
func (s *State) LastReport() *models.SpecialistReport {
	if len(s.Reports) == 0 {
		return nil
	}
	return &s.Reports[len(s.Reports)-1]
}
