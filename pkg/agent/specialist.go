package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/tools"
)

// ToolCaller invokes named tools on the tool server. Implemented by
// toolclient.Client; stubbed in tests.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (tools.Result, error)
}

// Completer is the tracked LLM surface the runtime depends on. node and
// kind label the inference for the per-query token breakdown.
type Completer interface {
	Complete(ctx context.Context, node, kind string, messages []llm.Message) (*llm.Response, error)
}

// Specialist runs one tactical subgraph: plan a list of tool actions with
// the LLM, execute them in order, aggregate into a SpecialistReport. On
// planning failure it falls back to a single default action instead of
// failing the whole step.
type Specialist struct {
	Kind models.SpecialistKind
	// Role is the persona line of the planning prompt.
	Role string
	// Tools maps tool name to a one-line description offered to the planner.
	Tools []ToolDescription
	// DefaultAction is used when the planner LLM fails or emits no actions.
	DefaultAction func(state *State) models.ToolAction
	// SummaryHeader opens the success summary.
	SummaryHeader string
	// Summarize overrides the generic summary for domain formatting.
	Summarize func(data map[string]interface{}) string

	llm   Completer
	calls ToolCaller
}

// ToolDescription is one entry of the planner's tool menu.
type ToolDescription struct {
	Name        string
	Description string
}

type actionResult struct {
	Tool    string
	Success bool
	Data    interface{}
	Error   string
}

func (s *Specialist) toolMenu() string {
	var b strings.Builder
	for i, t := range s.Tools {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, t.Name, t.Description)
	}
	return b.String()
}

// Run executes the plan/execute/report subgraph for one master-plan step.
func (s *Specialist) Run(ctx context.Context, state *State, step models.PlanStep) models.SpecialistReport {
	logger := slog.With("specialist", s.Kind, "query_id", state.QueryID)

	plan := s.plan(ctx, state, step, logger)
	results := make([]actionResult, 0, len(plan.Actions))
	for i, action := range plan.Actions {
		logger.Info("Executing action",
			"index", i+1,
			"total", len(plan.Actions),
			"tool", action.Tool)
		results = append(results, s.execute(ctx, state, action))
	}
	return s.report(results)
}

// plan asks the LLM for a SubPlan, falling back to the default action on
// any LLM or parse failure.
func (s *Specialist) plan(ctx context.Context, state *State, step models.PlanStep, logger *slog.Logger) models.SubPlan {
	params, _ := json.Marshal(step.Params)
	prompt := subPlanPrompt(s.Role, s.toolMenu(), step.Goal, string(params))

	node := fmt.Sprintf("%s_plan", s.Kind)
	resp, err := s.llm.Complete(ctx, node, "specialist", []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err == nil {
		var plan models.SubPlan
		if perr := decodeModelJSON(resp.Content, &plan); perr == nil && len(plan.Actions) > 0 {
			logger.Info("SubPlan generated", "actions", len(plan.Actions))
			return plan
		}
		err = fmt.Errorf("subplan response unusable")
	}

	logger.Warn("SubPlan generation failed, using default action", "error", err)
	return models.SubPlan{
		Actions:   []models.ToolAction{s.DefaultAction(state)},
		Reasoning: "plan por defecto ante error de planificación",
	}
}

// execute calls one tool, injecting the requester phone when the planner
// omitted it.
func (s *Specialist) execute(ctx context.Context, state *State, action models.ToolAction) actionResult {
	args := map[string]interface{}{}
	for k, v := range action.Params {
		args[k] = v
	}
	if _, ok := args["telefono"]; !ok {
		args["telefono"] = state.Phone
	}

	result, err := s.calls.CallTool(ctx, action.Tool, args)
	if err != nil {
		return actionResult{Tool: action.Tool, Error: err.Error()}
	}
	if !result.Success {
		return actionResult{Tool: action.Tool, Error: result.ErrorMessage()}
	}
	return actionResult{Tool: action.Tool, Success: true, Data: result.Data}
}

// report aggregates action results. Any failed action marks the report as
// failed and requests a replan.
func (s *Specialist) report(results []actionResult) models.SpecialistReport {
	allSuccess := len(results) > 0
	combined := map[string]interface{}{}
	var errs []string
	for _, r := range results {
		if !r.Success {
			allSuccess = false
			if r.Error != "" {
				errs = append(errs, r.Error)
			}
			continue
		}
		if r.Data != nil {
			combined[r.Tool] = r.Data
		}
	}

	if allSuccess {
		summary := ""
		if s.Summarize != nil {
			summary = s.Summarize(combined)
		}
		if summary == "" {
			summary = s.summarize(combined)
		}
		return models.SpecialistReport{
			Specialist: s.Kind,
			Success:    true,
			Data:       combined,
			Summary:    summary,
		}
	}

	errMsg := strings.Join(errs, "; ")
	if errMsg == "" {
		errMsg = "sin acciones ejecutadas"
	}
	return models.SpecialistReport{
		Specialist:     s.Kind,
		Success:        false,
		Data:           combined,
		Summary:        "No se pudo completar la consulta.",
		Error:          errMsg,
		RequiresReplan: true,
	}
}

func (s *Specialist) summarize(combined map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(s.SummaryHeader)
	for tool, data := range combined {
		payload, err := json.Marshal(data)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", tool, payload)
	}
	return b.String()
}

// NewSpecialists builds the three standard specialists wired to the given
// LLM and tool caller.
func NewSpecialists(completer Completer, calls ToolCaller) map[models.SpecialistKind]*Specialist {
	financial := &Specialist{
		Kind:          models.SpecialistFinancial,
		Role:          "Especialista Financiero",
		SummaryHeader: "Información financiera:",
		Summarize:     financialSummary,
		Tools: []ToolDescription{
			{Name: "consultar_estado_cuenta", Description: "Obtiene cuotas pendientes del responsable"},
			{Name: "obtener_link_pago", Description: "Genera link de pago para una cuota específica"},
			{Name: "registrar_confirmacion_pago", Description: "Registra que el padre confirmó un pago"},
		},
		DefaultAction: func(state *State) models.ToolAction {
			return models.ToolAction{
				Tool:        "consultar_estado_cuenta",
				Params:      map[string]interface{}{"telefono": state.Phone},
				Description: "Consultar estado de cuenta del responsable",
			}
		},
		llm:   completer,
		calls: calls,
	}

	administrative := &Specialist{
		Kind:          models.SpecialistAdministrative,
		Role:          "Especialista Administrativo",
		SummaryHeader: "Gestión administrativa:",
		Summarize:     administrativeSummary,
		Tools: []ToolDescription{
			{Name: "crear_ticket", Description: "Crea un ticket de gestión para seguimiento humano"},
			{Name: "buscar_ticket", Description: "Busca un ticket existente por id o prefijo"},
			{Name: "clasificar_prioridad", Description: "Clasifica la urgencia de un reclamo"},
		},
		DefaultAction: func(state *State) models.ToolAction {
			return models.ToolAction{
				Tool: "crear_ticket",
				Params: map[string]interface{}{
					"motivo":    state.Text,
					"categoria": "generic",
				},
				Description: "Crear ticket genérico para revisión manual",
			}
		},
		llm:   completer,
		calls: calls,
	}

	institutional := &Specialist{
		Kind:          models.SpecialistInstitutional,
		Role:          "Especialista Institucional",
		SummaryHeader: "Información del colegio:",
		Tools: []ToolDescription{
			{Name: "buscar_horarios", Description: "Horarios de secretaría y administración"},
			{Name: "buscar_calendario", Description: "Calendario escolar y feriados"},
			{Name: "buscar_autoridades", Description: "Autoridades del colegio"},
			{Name: "buscar_contacto", Description: "Teléfonos y correos de contacto"},
			{Name: "buscar_info_general", Description: "Información general por tema"},
		},
		DefaultAction: func(state *State) models.ToolAction {
			return models.ToolAction{
				Tool:        "buscar_contacto",
				Description: "Ofrecer datos de contacto del colegio",
			}
		},
		llm:   completer,
		calls: calls,
	}

	return map[models.SpecialistKind]*Specialist{
		models.SpecialistFinancial:      financial,
		models.SpecialistAdministrative: administrative,
		models.SpecialistInstitutional:  institutional,
	}
}
