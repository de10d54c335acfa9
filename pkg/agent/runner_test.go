package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/tools"
)

// scriptedLLM returns canned content per node name and counts calls.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		responses: map[string]string{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (s *scriptedLLM) Complete(ctx context.Context, node, kind string, messages []llm.Message) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[node]++
	if err, ok := s.errs[node]; ok {
		return nil, err
	}
	content, ok := s.responses[node]
	if !ok {
		return nil, fmt.Errorf("no scripted response for node %s", node)
	}
	return &llm.Response{Content: content, PromptTokens: 10, CompletionTokens: 20, HasUsage: true}, nil
}

func (s *scriptedLLM) callCount(node string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[node]
}

// stubCaller returns canned tool results and counts calls.
type stubCaller struct {
	mu      sync.Mutex
	results map[string]tools.Result
	calls   []string
}

func newStubCaller() *stubCaller {
	return &stubCaller{results: map[string]tools.Result{}}
}

func (s *stubCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (tools.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if result, ok := s.results[name]; ok {
		return result, nil
	}
	return tools.Fail("tool not found: " + name), nil
}

func (s *stubCaller) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == name {
			n++
		}
	}
	return n
}

type staticContextLoader struct {
	uc *models.UserContext
}

func (l *staticContextLoader) LoadUserContext(ctx context.Context, phone string) (*models.UserContext, error) {
	if l.uc == nil {
		return nil, errors.New("guardian not found")
	}
	return l.uc, nil
}

func garciaContext() *models.UserContext {
	return &models.UserContext{
		GuardianID: "R-001",
		Name:       "María García",
		Phone:      "+5491112345001",
		Students: []models.StudentSummary{
			{ID: "A-001", Name: "Juan García", Grade: "3A"},
			{ID: "A-002", Name: "Sofía García", Grade: "1B"},
		},
	}
}

func inbound(text string) models.InboundMessage {
	return models.InboundMessage{FromNumber: "+54 911 1234-5001", Text: text}
}

func TestGreetingShortCircuitsSpecialists(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"greeting","confidence":0.95,"steps":[],"requires_human":false}`

	runner := NewRunner(model, newStubCaller(), &staticContextLoader{uc: garciaContext()}, nil,
		config.AgentConfig{MaxReplans: 3})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q1", inbound("Hola"))
	require.NoError(t, err)

	assert.Equal(t, models.IntentGreeting, reply.Intent)
	assert.Contains(t, reply.Text, "estado de cuenta")
	assert.Contains(t, reply.Text, "Links de pago")
	assert.Contains(t, reply.Text, "Horarios")
	assert.Equal(t, 1, model.callCount(NodeManager))
	assert.Equal(t, 0, model.callCount(NodeSynthesize))
}

func TestAccountStatusSingleSuccessfulReport(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"financial_query","confidence":0.9,
		"steps":[{"specialist":"financial","goal":"consultar estado de cuenta","params":{},"priority":1}]}`
	model.responses["financial_plan"] = `{"actions":[{"tool":"consultar_estado_cuenta","params":{},"description":"estado"}]}`

	caller := newStubCaller()
	caller.results["consultar_estado_cuenta"] = tools.OK(map[string]interface{}{
		"responsable": "María García",
		"alumnos": []interface{}{
			map[string]interface{}{
				"nombre": "Juan García", "grado": "3A",
				"cuotas_pendientes": []interface{}{
					map[string]interface{}{"numero": 3.0, "monto": 45000.0, "vencimiento": "2026-03-10"},
				},
			},
			map[string]interface{}{
				"nombre": "Sofía García", "grado": "1B",
				"cuotas_pendientes": []interface{}{
					map[string]interface{}{"numero": 3.0, "monto": 42000.0, "vencimiento": "2026-03-10"},
				},
			},
		},
		"deuda_total": 132000.0,
	})

	runner := NewRunner(model, caller, &staticContextLoader{uc: garciaContext()}, nil,
		config.AgentConfig{MaxReplans: 3})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q2", inbound("Cuánto debo?"))
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "Juan García")
	assert.Contains(t, reply.Text, "Sofía García")
	assert.Contains(t, reply.Text, "132.000")
	// Single successful report: no synthesis LLM call.
	assert.Equal(t, 0, model.callCount(NodeSynthesize))
}

func TestPlanRequestCreatesTicket(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"plan_request","confidence":0.85,
		"steps":[{"specialist":"administrative","goal":"crear ticket de plan de pagos",
		"params":{"categoria":"plan_request"},"priority":1}]}`
	model.responses["administrative_plan"] = `{"actions":[{"tool":"crear_ticket",
		"params":{"motivo":"Quiero un plan de pagos","categoria":"plan_request"},"description":"ticket"}]}`

	caller := newStubCaller()
	caller.results["crear_ticket"] = tools.OK(map[string]interface{}{
		"ticket_id": "3f2a9d41-0000-0000-0000-000000000000",
		"prefijo":   "3f2a9d41",
		"categoria": "plan_request",
		"prioridad": "medium",
	})

	runner := NewRunner(model, caller, &staticContextLoader{uc: garciaContext()}, nil,
		config.AgentConfig{MaxReplans: 3})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q3", inbound("Quiero un plan de pagos"))
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "3f2a9d41")
	assert.Equal(t, 1, caller.callCount("crear_ticket"))
}

func TestReplanCapBoundsManagerCalls(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"financial_query","confidence":0.7,
		"steps":[{"specialist":"financial","goal":"consultar","params":{}}]}`
	model.responses["financial_plan"] = `{"actions":[{"tool":"consultar_estado_cuenta","params":{}}]}`
	model.responses[NodeSynthesize] = "Estamos revisando tu consulta manualmente."

	caller := newStubCaller()
	caller.results["consultar_estado_cuenta"] = tools.Fail("upstream unavailable")

	maxReplans := 3
	runner := NewRunner(model, caller, nil, nil, config.AgentConfig{MaxReplans: maxReplans})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q4", inbound("Cuánto debo?"))
	require.NoError(t, err)

	assert.Equal(t, 1+maxReplans, model.callCount(NodeManager))
	assert.NotEmpty(t, reply.Text)
	assert.NotContains(t, reply.Text, "upstream unavailable")
}

func TestManagerParseFailureApologizes(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = "lo siento, no puedo generar un plan"

	runner := NewRunner(model, newStubCaller(), nil, nil, config.AgentConfig{MaxReplans: 3})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q5", inbound("???"))
	require.NoError(t, err)
	assert.Equal(t, genericApology, reply.Text)
}

func TestUnknownSpecialistTriggersReplan(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"other","confidence":0.4,
		"steps":[{"specialist":"legal","goal":"?"}]}`
	model.responses[NodeSynthesize] = "Derivé tu consulta al equipo."

	runner := NewRunner(model, newStubCaller(), nil, nil, config.AgentConfig{MaxReplans: 1})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q6", inbound("consulta rara"))
	require.NoError(t, err)

	assert.Equal(t, 2, model.callCount(NodeManager))
	assert.NotEmpty(t, reply.Text)
}

func TestSpecialistPlanFailureFallsBackToDefaultAction(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"financial_query","confidence":0.9,
		"steps":[{"specialist":"financial","goal":"consultar"}]}`
	model.errs["financial_plan"] = errors.New("model overloaded")

	caller := newStubCaller()
	caller.results["consultar_estado_cuenta"] = tools.OK(map[string]interface{}{
		"responsable": "María García",
		"deuda_total": 1000.0,
	})

	runner := NewRunner(model, caller, nil, nil, config.AgentConfig{MaxReplans: 3})

	_, err := runner.HandleWithoutCheckpoint(context.Background(), "q7", inbound("saldo?"))
	require.NoError(t, err)
	assert.Equal(t, 1, caller.callCount("consultar_estado_cuenta"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+5491112345001", NormalizePhone("+54 911 1234-5001"))
	assert.Equal(t, "+5491112345001", NormalizePhone(NormalizePhone("+54 911 1234-5001")))
}

func TestClassifyRoute(t *testing.T) {
	assert.Equal(t, RouteEscalate, ClassifyRoute("tengo un reclamo por un mal cobro"))
	assert.Equal(t, RouteAssistant, ClassifyRoute("cuánto debo de la cuota?"))
	assert.Equal(t, RouteGreeting, ClassifyRoute("Hola!"))
	// Long messages are never plain greetings.
	assert.Equal(t, RouteAssistant,
		ClassifyRoute("hola quería saber si me pueden mandar el reglamento del comedor"))
	// Escalation wins over simple keywords.
	assert.Equal(t, RouteEscalate, ClassifyRoute("quiero un plan de pagos para la cuota"))
}

func TestKeywordRunnerGreeting(t *testing.T) {
	runner := NewKeywordRunner(newStubCaller())
	reply, err := runner.Handle(context.Background(), "q8", inbound("Hola"))
	require.NoError(t, err)
	assert.Equal(t, models.IntentGreeting, reply.Intent)
	assert.Contains(t, reply.Text, "asistente del Colegio")
}

func TestKeywordRunnerEscalates(t *testing.T) {
	caller := newStubCaller()
	caller.results["crear_ticket"] = tools.OK(map[string]interface{}{
		"ticket_id": "x", "prefijo": "ab12cd34", "prioridad": "medium",
	})

	runner := NewKeywordRunner(caller)
	reply, err := runner.Handle(context.Background(), "q9", inbound("quiero hacer un reclamo"))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ab12cd34")
	assert.Equal(t, 1, caller.callCount("crear_ticket"))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "132.000", FormatMoney(132000))
	assert.Equal(t, "1.000", FormatMoney(1000))
	assert.Equal(t, "500", FormatMoney(500))
	assert.Equal(t, "0", FormatMoney(0))
	assert.Equal(t, "12.345.678", FormatMoney(12345678))
}

func TestDecodeJSONTolerance(t *testing.T) {
	type payload struct {
		Intent string `json:"intent"`
	}

	var p payload
	require.NoError(t, DecodeJSON("```json\n{\"intent\": \"greeting\"}\n```", &p))
	assert.Equal(t, "greeting", p.Intent)

	p = payload{}
	require.NoError(t, DecodeJSON(`Claro! Aquí está el plan: {"intent": "other"} espero que sirva`, &p))
	assert.Equal(t, "other", p.Intent)

	// Trailing comma is repaired.
	p = payload{}
	require.NoError(t, DecodeJSON(`{"intent": "greeting",}`, &p))
	assert.Equal(t, "greeting", p.Intent)

	require.Error(t, DecodeJSON("no hay json acá", &p))
}

func TestSynthesizeReframesFailures(t *testing.T) {
	model := newScriptedLLM()
	model.responses[NodeManager] = `{"intent":"financial_query","confidence":0.8,
		"steps":[{"specialist":"financial","goal":"a"},{"specialist":"institutional","goal":"b"}]}`
	model.responses["financial_plan"] = `{"actions":[{"tool":"consultar_estado_cuenta","params":{}}]}`
	model.responses["institutional_plan"] = `{"actions":[{"tool":"buscar_horarios","params":{}}]}`
	model.responses[NodeSynthesize] = "Tu estado de cuenta está siendo procesado manualmente. Los horarios de secretaría son de 8 a 15."

	caller := newStubCaller()
	caller.results["consultar_estado_cuenta"] = tools.Fail("database timeout")
	caller.results["buscar_horarios"] = tools.OK(map[string]interface{}{"administracion": "8:00-15:00"})

	runner := NewRunner(model, caller, nil, nil, config.AgentConfig{MaxReplans: 0})

	reply, err := runner.HandleWithoutCheckpoint(context.Background(), "q10", inbound("cuanto debo y a que hora atienden?"))
	require.NoError(t, err)

	assert.NotContains(t, reply.Text, "database timeout")
	assert.Contains(t, strings.ToLower(reply.Text), "horarios")
}
