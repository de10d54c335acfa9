package codeplanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/toolclient"
)

// ToolDirectory is the tool-server surface the planner needs: invocation
// plus discovery for the planning prompt.
type ToolDirectory interface {
	agent.ToolCaller
	ListTools(ctx context.Context, category string) ([]toolclient.ToolInfo, error)
}

type reflection struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// Planner runs the plan/execute/self-correct/reflect/respond loop. Two
// independent counters bound it: corrections per generated program and
// planner iterations across reflections. Exhausting either still produces
// a user-facing response.
type Planner struct {
	llm            agent.Completer
	tools          ToolDirectory
	executor       *Executor
	maxCorrections int
	maxIterations  int
	logger         *slog.Logger
}

// NewPlanner builds the code-planner runtime.
func NewPlanner(completer agent.Completer, tools ToolDirectory, cfg config.AgentConfig) *Planner {
	return &Planner{
		llm:            completer,
		tools:          tools,
		executor:       NewExecutor(tools, cfg.ExecutionTimeout),
		maxCorrections: cfg.MaxCorrections,
		maxIterations:  cfg.MaxPlannerIters,
		logger:         slog.Default().With("component", "codeplanner"),
	}
}

// Handle answers one inbound message.
func (p *Planner) Handle(ctx context.Context, queryID string, msg models.InboundMessage) (*models.AgentReply, error) {
	phone := agent.NormalizePhone(msg.FromNumber)
	menu := p.toolMenu(ctx)

	var outcome *Outcome
	var lastErr error
	reason := ""

	for iteration := 1; iteration <= p.maxIterations; iteration++ {
		program := p.plan(ctx, msg.Text, menu, reason, lastErr)
		outcome, lastErr = p.executeWithCorrections(ctx, program, phone, msg.Text, menu)
		if lastErr != nil {
			// Corrections exhausted; respond with whatever we have.
			p.logger.Warn("Program execution failed after corrections",
				"query_id", queryID, "iteration", iteration, "error", lastErr)
			break
		}

		verdict := p.reflect(ctx, msg.Text, outcome)
		if verdict.Valid {
			break
		}
		reason = verdict.Reason
		p.logger.Info("Reflection rejected result",
			"query_id", queryID,
			"iteration", iteration,
			"max_iterations", p.maxIterations,
			"reason", reason)
	}

	text := p.respond(ctx, msg.Text, outcome, lastErr)
	return &models.AgentReply{
		Text:    text,
		Agent:   "codeplanner",
		QueryID: queryID,
	}, nil
}

// toolMenu renders the remote tool descriptors for the planning prompt.
// Discovery failure degrades to an erp-only static menu.
func (p *Planner) toolMenu(ctx context.Context) string {
	listed, err := p.tools.ListTools(ctx, "")
	if err != nil || len(listed) == 0 {
		p.logger.Warn("Tool discovery failed, using static menu", "error", err)
		return "- consultar_estado_cuenta: Obtiene cuotas pendientes del responsable (args: telefono)\n" +
			"- obtener_link_pago: Genera link de pago (args: cuota_id)\n" +
			"- crear_ticket: Crea un ticket de gestión (args: motivo, categoria)\n"
	}

	var b strings.Builder
	for _, tool := range listed {
		schema, _ := json.Marshal(tool.Schema)
		fmt.Fprintf(&b, "- %s: %s (schema: %s)\n", tool.Name, tool.Description, schema)
	}
	return b.String()
}

// plan asks the LLM for a program. Parse failure falls back to an
// account-status program so execution always has something to run.
func (p *Planner) plan(ctx context.Context, text, menu, reflectionReason string, priorErr error) *Program {
	prompt := planPrompt(text, menu, reflectionReason, priorErr)
	resp, err := p.llm.Complete(ctx, "codeplanner_plan", "planning", []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err == nil {
		program, perr := ParseProgram(resp.Content)
		if perr == nil {
			return program
		}
		err = perr
	}
	p.logger.Warn("Program generation failed, using fallback", "error", err)
	return fallbackProgram()
}

// executeWithCorrections runs the program, asking the LLM to repair it on
// execution errors, at most maxCorrections times.
func (p *Planner) executeWithCorrections(ctx context.Context, program *Program, phone, text, menu string) (*Outcome, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxCorrections; attempt++ {
		outcome, err := p.executor.Run(ctx, program, phone, text)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if attempt == p.maxCorrections {
			break
		}
		corrected := p.selfCorrect(ctx, program, err, menu)
		if corrected == nil {
			break
		}
		program = corrected
	}
	return nil, lastErr
}

// selfCorrect asks the LLM to repair a failed program given the error.
func (p *Planner) selfCorrect(ctx context.Context, program *Program, execErr error, menu string) *Program {
	encoded, _ := json.Marshal(program)
	prompt := correctionPrompt(string(encoded), execErr.Error(), menu)
	resp, err := p.llm.Complete(ctx, "codeplanner_correct", "correction", []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		p.logger.Warn("Self-correction LLM failed", "error", err)
		return nil
	}
	corrected, err := ParseProgram(resp.Content)
	if err != nil {
		p.logger.Warn("Self-correction emitted unusable program", "error", err)
		return nil
	}
	return corrected
}

// reflect asks the LLM whether the execution result answers the question.
// LLM failure counts as valid so the loop cannot spin on a broken judge.
func (p *Planner) reflect(ctx context.Context, text string, outcome *Outcome) reflection {
	encoded, _ := json.Marshal(outcome.Result)
	prompt := reflectPrompt(text, string(encoded))
	resp, err := p.llm.Complete(ctx, "codeplanner_reflect", "reflection", []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		p.logger.Warn("Reflection LLM failed, accepting result", "error", err)
		return reflection{Valid: true}
	}
	var verdict reflection
	if err := agent.DecodeJSON(resp.Content, &verdict); err != nil {
		p.logger.Warn("Reflection verdict unparseable, accepting result", "error", err)
		return reflection{Valid: true}
	}
	return verdict
}

// respond formulates the final user-facing message from the best available
// data. Technical failures never reach the user.
func (p *Planner) respond(ctx context.Context, text string, outcome *Outcome, execErr error) string {
	if outcome == nil {
		if execErr != nil {
			p.logger.Error("Responding without execution data", "error", execErr)
		}
		return "Estamos procesando tu consulta manualmente; un representante se va a contactar con vos a la brevedad. ¿Hay algo más en lo que pueda ayudarte?"
	}

	encoded, _ := json.Marshal(outcome.Result)
	prompt := respondPrompt(text, string(encoded))
	resp, err := p.llm.Complete(ctx, "codeplanner_respond", "synthesis", []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		p.logger.Error("Response formulation failed", "error", err)
		return "Procesé tu consulta. ¿Necesitás algo más?"
	}
	return strings.TrimSpace(resp.Content)
}

func fallbackProgram() *Program {
	return &Program{
		Steps: []Step{{
			ID:     "s1",
			Tool:   "consultar_estado_cuenta",
			Args:   map[string]interface{}{"telefono": "$phone"},
			SaveAs: "acct",
		}},
		Result: map[string]interface{}{"estado_cuenta": "$acct.data"},
	}
}
