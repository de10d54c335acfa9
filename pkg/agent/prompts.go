package agent

import (
	"fmt"
	"strings"

	"github.com/colegio-digital/gestor/pkg/models"
)

const greetingResponse = "¡Hola! 👋 Soy el asistente del Colegio. ¿En qué puedo ayudarte?\n\n" +
	"Puedo informarte sobre:\n" +
	"• Tu estado de cuenta y cuotas\n" +
	"• Links de pago\n" +
	"• Horarios y calendario\n" +
	"• Información del colegio"

const genericApology = "Disculpá, tuve un problema procesando tu consulta. 😅\n\n¿Podés intentar de nuevo?"

const noReportsResponse = "Recibí tu mensaje pero no pude procesarlo completamente.\n\n¿Podrías reformular tu consulta?"

func describeUserContext(uc *models.UserContext) string {
	if uc == nil {
		return "Usuario no identificado en el sistema."
	}
	students := "ninguno"
	if len(uc.Students) > 0 {
		parts := make([]string, 0, len(uc.Students))
		for _, s := range uc.Students {
			parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, s.Grade))
		}
		students = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Responsable: %s. Alumnos: %s", uc.Name, students)
}

func managerPrompt(state *State) string {
	var prior strings.Builder
	if state.ReplanCount > 0 && len(state.Reports) > 0 {
		prior.WriteString("\n\nREPORTES PREVIOS (hubo errores, replanificar):\n")
		for _, r := range state.Reports {
			status := "OK"
			detail := r.Summary
			if !r.Success {
				status = "ERROR"
				if r.Error != "" {
					detail = r.Error
				}
			}
			fmt.Fprintf(&prior, "- %s: %s - %s\n", r.Specialist, status, detail)
		}
	}

	return fmt.Sprintf(`Eres el Manager Jefe del sistema de atención del Colegio.
Analiza la consulta del padre/responsable y genera un plan de acción.

CONSULTA: %s
CONTEXTO: %s%s

ESPECIALISTAS DISPONIBLES:
1. financial - Cuotas, pagos, estado de cuenta, links de pago
2. administrative - Tickets, reclamos, bajas, planes de pago, consultas complejas
3. institutional - Horarios, calendario, autoridades, información del colegio

INTENTS POSIBLES:
- financial_query: "cuánto debo", "estado de cuenta", "cuotas"
- payment_request: "link de pago", "cómo pago"
- payment_claim: "ya pagué", "hice el pago"
- complaint: quejas, errores en cobros
- withdrawal_request: dar de baja alumno
- plan_request: solicitud de financiación
- institutional_query: horarios, calendario, autoridades
- greeting: solo saludo sin consulta específica
- other: consultas que no encajan

REGLAS:
1. Si es solo saludo, no asignes especialistas
2. Consultas financieras simples → financial
3. Reclamos, bajas, planes de pago → administrative (crear ticket)
4. Info del colegio (horarios, autoridades) → institutional
5. Consultas mixtas pueden tener múltiples pasos

Responde SOLO con JSON válido (sin markdown):
{
    "intent": "tipo_intent",
    "confidence": 0.0-1.0,
    "steps": [
        {"specialist": "financial|administrative|institutional", "goal": "descripción de la meta", "params": {}, "priority": 1}
    ],
    "requires_human": false,
    "reasoning": "explicación breve"
}

Si es saludo, steps debe ser lista vacía [].
`, state.Text, describeUserContext(state.UserContext), prior.String())
}

func synthesizePrompt(state *State) string {
	var reports strings.Builder
	for _, r := range state.Reports {
		mark := "✅"
		if !r.Success {
			mark = "❌"
		}
		fmt.Fprintf(&reports, "- %s: %s\n  %s\n", r.Specialist, mark, r.Summary)
	}

	return fmt.Sprintf(`Eres el Responsable de Atención al Cliente del Colegio, experto en comunicación empática y resolutiva.
Tu objetivo es sintetizar la información de los especialistas para dar una respuesta final única por WhatsApp.

CONSULTA DEL PADRE: %s

REPORTES TÉCNICOS DE ESPECIALISTAS:
%s

REGLAS DE ORO PARA TU RESPUESTA:
1. TONO: Profesional, cercano y servicial. Usa negritas para resaltar datos importantes (ej. *monto total*).
2. GESTIÓN DE ERRORES (CRÍTICO): si un reporte indica error o fallo técnico, NO lo menciones. En su lugar, di amablemente que "la gestión está siendo procesada manualmente" o que "un representante revisará este punto a la brevedad".
3. INTEGRACIÓN: no listes los reportes por separado; crea un mensaje fluido.
4. CALL TO ACTION: finaliza con una pregunta clara o el siguiente paso lógico.
5. FORMATO: máximo 3 párrafos cortos, sin tablas ni encabezados.

Respuesta:
`, state.Text, reports.String())
}

func subPlanPrompt(role, toolList, goal, params string) string {
	return fmt.Sprintf(`Eres el %s de un colegio.
Tu tarea es planificar cómo resolver esta meta:

META: %s
PARÁMETROS: %s

Herramientas disponibles:
%s

Responde SOLO con JSON válido (sin markdown):
{
    "actions": [
        {"tool": "nombre_herramienta", "params": {}, "description": "qué hace"}
    ],
    "reasoning": "por qué elegiste estas acciones"
}
`, role, goal, params, toolList)
}
