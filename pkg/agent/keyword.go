package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/colegio-digital/gestor/pkg/models"
)

// Route is the outcome of keyword classification.
type Route string

const (
	RouteAssistant Route = "assistant"
	RouteEscalate  Route = "escalate"
	RouteGreeting  Route = "greeting"
)

var simpleKeywords = []string{
	"cuanto debo", "cuánto debo", "saldo", "link", "pagar", "vencimiento",
	"cuota", "pendiente", "deuda", "estado de cuenta", "mis hijos", "alumno",
}

var escalationKeywords = []string{
	"reclamo", "queja", "baja", "urgente", "error", "problema",
	"hablar con alguien", "humano", "plan de pago", "plan de pagos",
	"descuento", "beca", "no puedo pagar", "dificultad", "injusto", "mal cobro",
}

var greetingKeywords = []string{
	"hola", "buenos días", "buenas tardes", "buenas noches", "buen día", "hey", "hi",
}

// ClassifyRoute picks a route by keyword matching, no LLM involved.
// Escalation keywords win over everything; greetings only count when the
// message is short enough to be nothing but a greeting.
func ClassifyRoute(message string) Route {
	text := strings.ToLower(strings.TrimSpace(message))

	if containsAny(text, escalationKeywords) {
		return RouteEscalate
	}
	if containsAny(text, simpleKeywords) {
		return RouteAssistant
	}
	if len([]rune(text)) < 30 && containsAny(text, greetingKeywords) {
		return RouteGreeting
	}
	return RouteAssistant
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// KeywordRunner is the legacy runtime: keyword routing straight to tools,
// no planner LLM in the loop.
type KeywordRunner struct {
	calls  ToolCaller
	logger *slog.Logger
}

// NewKeywordRunner builds the legacy keyword-routed runtime.
func NewKeywordRunner(calls ToolCaller) *KeywordRunner {
	return &KeywordRunner{
		calls:  calls,
		logger: slog.Default().With("component", "keyword-runner"),
	}
}

// Handle answers an inbound message using keyword routing.
func (k *KeywordRunner) Handle(ctx context.Context, queryID string, msg models.InboundMessage) (*models.AgentReply, error) {
	route := ClassifyRoute(msg.Text)
	k.logger.Info("Message routed", "query_id", queryID, "route", route)

	reply := &models.AgentReply{Agent: "keyword", QueryID: queryID}

	switch route {
	case RouteGreeting:
		reply.Text = greetingResponse
		reply.Intent = models.IntentGreeting
		return reply, nil

	case RouteEscalate:
		result, err := k.calls.CallTool(ctx, "crear_ticket", map[string]interface{}{
			"motivo":      msg.Text,
			"categoria":   "generic",
			"responsable": NormalizePhone(msg.FromNumber),
		})
		if err != nil || !result.Success {
			k.logger.Error("Escalation ticket failed", "query_id", queryID, "error", err)
			reply.Text = "Registré tu consulta para que un representante la revise a la brevedad."
			return reply, nil
		}
		ticketRef := ""
		if data, ok := result.Data.(map[string]interface{}); ok {
			if prefix, ok := data["prefijo"].(string); ok {
				ticketRef = fmt.Sprintf(" Tu número de gestión es *%s*.", prefix)
			}
		}
		reply.Text = "Entiendo tu situación. Derivé tu consulta al equipo administrativo," +
			" que se va a contactar con vos." + ticketRef
		reply.Intent = models.IntentComplaint
		return reply, nil

	default:
		result, err := k.calls.CallTool(ctx, "consultar_estado_cuenta", map[string]interface{}{
			"telefono": NormalizePhone(msg.FromNumber),
		})
		if err != nil || !result.Success {
			k.logger.Error("Account status lookup failed", "query_id", queryID, "error", err)
			reply.Text = "No pude consultar tu estado de cuenta en este momento. ¿Podés intentar más tarde?"
			return reply, nil
		}
		reply.Text = formatAccountStatus(result.Data)
		reply.Intent = models.IntentFinancialQuery
		return reply, nil
	}
}

// formatAccountStatus renders the account-status tool payload as a short
// WhatsApp message.
func formatAccountStatus(data interface{}) string {
	payload, ok := data.(map[string]interface{})
	if !ok {
		return "Consulté tu estado de cuenta pero no encontré información para mostrar."
	}
	if found, ok := payload["found"].(bool); ok && !found {
		return "No encontré tu número registrado en el sistema. ¿Podés verificar con administración?"
	}

	var b strings.Builder
	if name, ok := payload["responsable"].(string); ok && name != "" {
		fmt.Fprintf(&b, "Hola %s, este es tu estado de cuenta:\n", name)
	} else {
		b.WriteString("Este es tu estado de cuenta:\n")
	}

	if students, ok := payload["alumnos"].([]interface{}); ok {
		for _, raw := range students {
			student, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "\n*%v* (%v)\n", student["nombre"], student["grado"])
			if installments, ok := student["cuotas_pendientes"].([]interface{}); ok {
				if len(installments) == 0 {
					b.WriteString("  Sin cuotas pendientes ✅\n")
				}
				for _, rawInst := range installments {
					inst, ok := rawInst.(map[string]interface{})
					if !ok {
						continue
					}
					amount := ""
					if monto, ok := inst["monto"].(float64); ok {
						amount = FormatMoney(monto)
					}
					fmt.Fprintf(&b, "  • Cuota %v: $%s (vence %v)\n",
						inst["numero"], amount, inst["vencimiento"])
				}
			}
		}
	}

	if total, ok := payload["deuda_total"].(float64); ok && total > 0 {
		fmt.Fprintf(&b, "\n*Deuda total: $%s*", FormatMoney(total))
	}
	return strings.TrimSpace(b.String())
}
