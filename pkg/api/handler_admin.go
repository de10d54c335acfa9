package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/models"
)

// ticketView is the admin-facing wire representation of a ticket.
type ticketView struct {
	ID         string  `json:"id"`
	StudentID  string  `json:"student_id"`
	GuardianID *string `json:"guardian_id,omitempty"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
	Context    string  `json:"context,omitempty"`
	State      string  `json:"state"`
	Priority   string  `json:"priority"`
	AdminReply *string `json:"admin_reply,omitempty"`
	CreatedAt  string  `json:"created_at"`
	ResolvedAt *string `json:"resolved_at,omitempty"`
}

func toTicketView(t *ent.Ticket) ticketView {
	view := ticketView{
		ID:         t.ID,
		StudentID:  t.StudentID,
		GuardianID: t.GuardianID,
		Category:   string(t.Category),
		Reason:     t.Reason,
		Context:    t.Context,
		State:      string(t.State),
		Priority:   string(t.Priority),
		AdminReply: t.AdminReply,
		CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.ResolvedAt != nil {
		resolved := t.ResolvedAt.UTC().Format(time.RFC3339)
		view.ResolvedAt = &resolved
	}
	return view
}

// ListTickets handles GET /api/v1/admin/tickets with estado, categoria and
// prioridad filters.
func (s *Server) ListTickets(c *gin.Context) {
	filter := models.TicketFilter{
		State:    c.Query("estado"),
		Category: c.Query("categoria"),
		Priority: c.Query("prioridad"),
	}
	rows, err := s.svc.Tickets.ListTickets(c.Request.Context(), filter)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	views := make([]ticketView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toTicketView(row))
	}
	c.JSON(http.StatusOK, gin.H{"tickets": views, "count": len(views)})
}

// GetTicket handles GET /api/v1/admin/tickets/:id, accepting either the
// full id or the 8-character prefix guardians are given.
func (s *Server) GetTicket(c *gin.Context) {
	row, err := s.svc.Tickets.FindTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTicketView(row))
}

// RespondTicket handles POST /api/v1/admin/tickets/:id/responder: it
// resolves the ticket with the admin's reply and forwards a guardian-facing
// reformulation over WhatsApp.
func (s *Server) RespondTicket(c *gin.Context) {
	var req models.RespondTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "reply is required"})
		return
	}

	found, err := s.svc.Tickets.FindTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	row, err := s.svc.Tickets.RespondTicket(c.Request.Context(), found.ID, req.Reply)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	s.forwardAdminReply(row, req.Reply)
	c.JSON(http.StatusOK, toTicketView(row))
}

// forwardAdminReply reformulates the internal reply for the guardian and
// delivers it in the background.
func (s *Server) forwardAdminReply(row *ent.Ticket, reply string) {
	ticketID := row.ID
	s.submit("admin-reply", func(ctx context.Context) error {
		phone, err := s.guardianPhoneForTicket(ctx, row)
		if err != nil {
			return err
		}

		text := s.reformulateReply(ctx, row, reply)
		s.wa.Notify(ctx, phone, text)

		if s.svc.Interactions != nil {
			agentName := "admin"
			_, err = s.svc.Interactions.RecordInteraction(ctx, models.CreateInteractionRequest{
				Phone:  phone,
				Kind:   "admin_reply",
				Text:   text,
				Agent:  &agentName,
				Extras: map[string]interface{}{"ticket_id": ticketID},
			})
			return err
		}
		return nil
	})
}

func (s *Server) guardianPhoneForTicket(ctx context.Context, row *ent.Ticket) (string, error) {
	if row.GuardianID != nil {
		guardian, err := s.svc.Mirrors.Guardian(ctx, *row.GuardianID)
		if err == nil {
			return guardian.Phone, nil
		}
	}
	guardian, err := s.svc.Mirrors.GuardianForStudent(ctx, row.StudentID)
	if err != nil {
		return "", fmt.Errorf("no guardian for ticket %s: %w", row.ID, err)
	}
	return guardian.Phone, nil
}

// reformulateReply asks the LLM for a warm guardian-facing version of the
// admin's internal note, falling back to a plain template.
func (s *Server) reformulateReply(ctx context.Context, row *ent.Ticket, reply string) string {
	fallback := fmt.Sprintf("Sobre tu gestión *%s*: %s", row.ID[:8], reply)
	if s.llm == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Sos el asistente de un colegio. La administración respondió una gestión de un padre.

Motivo original de la gestión: %s
Respuesta interna de la administración: %s

Reformulá la respuesta en un mensaje corto de WhatsApp para el padre: cálido, claro, en español rioplatense. Incluí el número de gestión %s. Respondé SOLO con el mensaje.`,
		row.Reason, reply, row.ID[:8])

	resp, err := s.llm.Complete(ctx, "admin_reply", "responder", []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil || resp.Content == "" {
		return fallback
	}
	return resp.Content
}
