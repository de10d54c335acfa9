package tools

import (
	"context"
	"fmt"
	"strings"
)

// highPriorityMarkers escalate a ticket when present in the reason text.
var highPriorityMarkers = []string{"urgente", "legal", "abogado", "denuncia", "maltrato", "bullying"}

// mediumPriorityMarkers mark requests that need timely human follow-up.
var mediumPriorityMarkers = []string{"plan", "pago", "cuota", "deuda", "baja", "retiro"}

// ClassifyPriority derives a ticket priority from its reason text.
func ClassifyPriority(reason string) string {
	lower := strings.ToLower(reason)
	for _, marker := range highPriorityMarkers {
		if strings.Contains(lower, marker) {
			return "high"
		}
	}
	for _, marker := range mediumPriorityMarkers {
		if strings.Contains(lower, marker) {
			return "medium"
		}
	}
	return "low"
}

// RegisterAdminTools registers the admin category tools over the given
// ticket store.
func RegisterAdminTools(r *Registry, store *TicketStore) {
	r.MustRegister(&Tool{
		Name:        "crear_ticket",
		Description: "Crea un ticket de escalamiento para revisión del equipo administrativo.",
		Category:    CategoryAdmin,
		Params: []ParamSpec{
			{Name: "motivo", Type: "string", Description: "Motivo del ticket"},
			{Name: "categoria", Type: "string", Description: "plan_request, complaint, withdrawal, generic o authority_info", Default: "generic"},
			{Name: "alumno_id", Type: "string", Description: "Alumno relacionado", Default: ""},
			{Name: "responsable", Type: "string", Description: "Teléfono o nombre del responsable", Default: ""},
			{Name: "contexto", Type: "string", Description: "Fragmento de la conversación", Default: ""},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			reason, _ := args["motivo"].(string)
			if reason == "" {
				return nil, fmt.Errorf("motivo is required")
			}
			category, _ := args["categoria"].(string)
			studentID, _ := args["alumno_id"].(string)
			guardian, _ := args["responsable"].(string)
			contextText, _ := args["contexto"].(string)

			ticket := store.Create(TicketRecord{
				StudentID: studentID,
				Guardian:  guardian,
				Category:  category,
				Reason:    reason,
				Context:   contextText,
				Priority:  ClassifyPriority(reason),
			})
			return map[string]interface{}{
				"ticket_id": ticket.ID,
				"prefijo":   ticket.ID[:8],
				"categoria": ticket.Category,
				"prioridad": ticket.Priority,
				"estado":    ticket.State,
			}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "buscar_ticket",
		Description: "Busca un ticket por id completo o por su prefijo de 8 caracteres.",
		Category:    CategoryAdmin,
		Params: []ParamSpec{
			{Name: "ticket_id", Type: "string", Description: "Id o prefijo del ticket"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id, _ := args["ticket_id"].(string)
			ticket, ok := store.Get(id)
			if !ok {
				return nil, fmt.Errorf("ticket %s not found", id)
			}
			return ticket, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "clasificar_prioridad",
		Description: "Clasifica la prioridad de un reclamo según su texto.",
		Category:    CategoryAdmin,
		Params: []ParamSpec{
			{Name: "texto", Type: "string", Description: "Texto del reclamo"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			text, _ := args["texto"].(string)
			return map[string]interface{}{"prioridad": ClassifyPriority(text)}, nil
		},
	})

	r.MustRegister(&Tool{
		Name:        "listar_tickets_pendientes",
		Description: "Lista los tickets pendientes de atención.",
		Category:    CategoryAdmin,
		Params:      []ParamSpec{},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return store.ListPending(), nil
		},
	})
}
