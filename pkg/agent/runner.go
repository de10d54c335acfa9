package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/models"
)

// ContextLoader resolves the guardian context for an inbound handle.
// Implemented by the mirror service; nil disables context loading.
type ContextLoader interface {
	LoadUserContext(ctx context.Context, phone string) (*models.UserContext, error)
}

// Runner drives the hierarchical planner graph for one inbound message at
// a time per thread. Threads are keyed by phone number; state is
// checkpointed after every node transition.
type Runner struct {
	llm         Completer
	contexts    ContextLoader
	checkpoints Checkpointer
	specialists map[models.SpecialistKind]*Specialist
	maxReplans  int
	logger      *slog.Logger
}

// NewRunner builds a runner. contexts and checkpoints may be nil.
func NewRunner(completer Completer, calls ToolCaller, contexts ContextLoader, checkpoints Checkpointer, cfg config.AgentConfig) *Runner {
	return &Runner{
		llm:         completer,
		contexts:    contexts,
		checkpoints: checkpoints,
		specialists: NewSpecialists(completer, calls),
		maxReplans:  cfg.MaxReplans,
		logger:      slog.Default().With("component", "agent-runner"),
	}
}

// Handle runs the graph for one inbound message and returns the reply.
// An interrupted prior run for the same thread is resumed first.
func (r *Runner) Handle(ctx context.Context, queryID string, msg models.InboundMessage) (*models.AgentReply, error) {
	threadID := NormalizePhone(msg.FromNumber)

	state := NewState(queryID, threadID, msg.Text)
	if prior, ok, err := r.loadCheckpoint(threadID); err == nil && ok {
		if prior.Node != NodeDone && prior.Node != "" {
			r.logger.Info("Resuming interrupted run",
				"thread_id", threadID,
				"node", prior.Node,
				"prior_query_id", prior.QueryID)
			state = prior
		}
	} else if err != nil {
		r.logger.Warn("Checkpoint load failed", "thread_id", threadID, "error", err)
	}

	return r.run(ctx, threadID, state)
}

// HandleWithoutCheckpoint runs a fresh state with no persistence. Entry
// point for tests and one-shot invocations.
func (r *Runner) HandleWithoutCheckpoint(ctx context.Context, queryID string, msg models.InboundMessage) (*models.AgentReply, error) {
	state := NewState(queryID, NormalizePhone(msg.FromNumber), msg.Text)
	return r.runGraph(ctx, "", state)
}

func (r *Runner) run(ctx context.Context, threadID string, state *State) (*models.AgentReply, error) {
	reply, err := r.runGraph(ctx, threadID, state)
	if err != nil {
		return nil, err
	}
	if r.checkpoints != nil {
		if derr := r.checkpoints.Delete(threadID); derr != nil {
			r.logger.Warn("Checkpoint cleanup failed", "thread_id", threadID, "error", derr)
		}
	}
	return reply, nil
}

// runGraph steps the node graph until synthesis. Each transition persists
// state when a thread id is given.
func (r *Runner) runGraph(ctx context.Context, threadID string, state *State) (*models.AgentReply, error) {
	for state.Node != NodeDone {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted at node %s: %w", state.Node, err)
		}

		switch state.Node {
		case NodeLoadContext:
			r.loadContext(ctx, state)
			state.Node = NodeManager

		case NodeManager:
			r.manager(ctx, state)
			state.Node = r.routePostManager(state)

		case NodeExecuteSpecialist:
			r.executeSpecialist(ctx, state)
			state.Node = NodeEvaluate

		case NodeEvaluate:
			r.evaluate(state)
			state.Node = r.routePostEvaluate(state)

		case NodeSynthesize:
			r.synthesize(ctx, state)
			state.Node = NodeDone

		default:
			return nil, fmt.Errorf("unknown node %q", state.Node)
		}

		r.saveCheckpoint(threadID, state)
	}

	reply := &models.AgentReply{
		Text:    state.FinalResponse,
		Agent:   "hierarchical",
		QueryID: state.QueryID,
	}
	if state.Plan != nil {
		reply.Intent = state.Plan.Intent
	}
	return reply, nil
}

func (r *Runner) loadContext(ctx context.Context, state *State) {
	if r.contexts == nil {
		return
	}
	uc, err := r.contexts.LoadUserContext(ctx, state.Phone)
	if err != nil {
		r.logger.Warn("User context unavailable", "phone", state.Phone, "error", err)
		return
	}
	state.UserContext = uc
}

func (r *Runner) manager(ctx context.Context, state *State) {
	resp, err := r.llm.Complete(ctx, NodeManager, "planning", []llm.Message{
		{Role: llm.RoleUser, Content: managerPrompt(state)},
	})
	if err != nil {
		r.logger.Error("Manager LLM failed", "query_id", state.QueryID, "error", err)
		state.ErrMsg = fmt.Sprintf("manager: %v", err)
		state.Plan = nil
		return
	}

	var plan models.MasterPlan
	if err := decodeModelJSON(resp.Content, &plan); err != nil {
		r.logger.Error("Manager plan unparseable", "query_id", state.QueryID, "error", err)
		state.ErrMsg = fmt.Sprintf("manager: %v", err)
		state.Plan = nil
		return
	}
	if plan.Intent == "" {
		plan.Intent = models.IntentOther
	}

	state.Plan = &plan
	if state.ReplanCount == 0 {
		state.Cursor = 0
		state.Reports = nil
	} else {
		// A replan replaces the remaining steps; prior reports stay for
		// the synthesizer.
		state.Cursor = 0
	}
	state.NeedsReplan = false

	r.logger.Info("MasterPlan generated",
		"query_id", state.QueryID,
		"intent", plan.Intent,
		"steps", len(plan.Steps),
		"replan_count", state.ReplanCount)
}

func (r *Runner) routePostManager(state *State) string {
	if state.Plan == nil {
		return NodeSynthesize
	}
	if state.Plan.Intent == models.IntentGreeting || len(state.Plan.Steps) == 0 {
		return NodeSynthesize
	}
	return NodeExecuteSpecialist
}

func (r *Runner) executeSpecialist(ctx context.Context, state *State) {
	step := state.Plan.Steps[state.Cursor]
	r.logger.Info("Executing plan step",
		"query_id", state.QueryID,
		"step", state.Cursor+1,
		"total", len(state.Plan.Steps),
		"specialist", step.Specialist)

	var report models.SpecialistReport
	if specialist, ok := r.specialists[step.Specialist]; ok {
		report = specialist.Run(ctx, state, step)
	} else {
		report = models.SpecialistReport{
			Specialist:     step.Specialist,
			Success:        false,
			Summary:        fmt.Sprintf("Especialista %q no disponible", step.Specialist),
			Error:          fmt.Sprintf("especialista desconocido: %s", step.Specialist),
			RequiresReplan: true,
		}
	}

	state.Reports = append(state.Reports, report)
	state.Cursor++
}

func (r *Runner) evaluate(state *State) {
	last := state.LastReport()
	if last == nil {
		state.NeedsReplan = false
		return
	}
	if last.RequiresReplan && state.ReplanCount < r.maxReplans {
		state.NeedsReplan = true
		state.ReplanCount++
		r.logger.Info("Replan requested",
			"query_id", state.QueryID,
			"replan_count", state.ReplanCount,
			"max_replans", r.maxReplans)
		return
	}
	if last.RequiresReplan {
		r.logger.Warn("Replan cap reached", "query_id", state.QueryID)
	}
	state.NeedsReplan = false
}

func (r *Runner) routePostEvaluate(state *State) string {
	if state.NeedsReplan {
		return NodeManager
	}
	if state.Plan != nil && state.Cursor < len(state.Plan.Steps) {
		return NodeExecuteSpecialist
	}
	return NodeSynthesize
}

// synthesize produces the final message. Technical failures are never
// surfaced: failed reports are reframed as manual follow-up.
func (r *Runner) synthesize(ctx context.Context, state *State) {
	switch {
	case state.Plan == nil:
		state.FinalResponse = genericApology
		return
	case state.Plan.Intent == models.IntentGreeting:
		state.FinalResponse = greetingResponse
		return
	case len(state.Reports) == 0:
		state.FinalResponse = noReportsResponse
		return
	case len(state.Reports) == 1 && state.Reports[0].Success:
		state.FinalResponse = state.Reports[0].Summary
		return
	}

	resp, err := r.llm.Complete(ctx, NodeSynthesize, "synthesis", []llm.Message{
		{Role: llm.RoleUser, Content: synthesizePrompt(state)},
	})
	if err != nil {
		r.logger.Error("Synthesis LLM failed", "query_id", state.QueryID, "error", err)
		for _, report := range state.Reports {
			if report.Success {
				state.FinalResponse = report.Summary
				return
			}
		}
		state.FinalResponse = "Procesé tu consulta. ¿Necesitás algo más?"
		return
	}
	state.FinalResponse = strings.TrimSpace(resp.Content)
}

func (r *Runner) loadCheckpoint(threadID string) (*State, bool, error) {
	if r.checkpoints == nil {
		return nil, false, nil
	}
	return r.checkpoints.Load(threadID)
}

func (r *Runner) saveCheckpoint(threadID string, state *State) {
	if r.checkpoints == nil || threadID == "" {
		return
	}
	if err := r.checkpoints.Save(threadID, state); err != nil {
		r.logger.Warn("Checkpoint save failed", "thread_id", threadID, "error", err)
	}
}

// NormalizePhone strips spaces and hyphens so handles compare stably
// across transports.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
}
