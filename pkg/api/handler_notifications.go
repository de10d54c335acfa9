package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/models"
)

// sendNotificationRequest is the body of POST /api/v1/notifications/send.
type sendNotificationRequest struct {
	Phone string `json:"phone" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

// registerNotificationRequest is the body of POST /api/v1/notifications/register.
type registerNotificationRequest struct {
	InstallmentID string `json:"installment_id" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Kind          string `json:"kind" binding:"required"`
}

// SendNotification delivers one ad-hoc WhatsApp message.
func (s *Server) SendNotification(c *gin.Context) {
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	result := s.wa.Notify(c.Request.Context(), req.Phone, req.Text)
	s.submit("record-notification-send", func(ctx context.Context) error {
		if s.svc.Interactions == nil {
			return nil
		}
		agentName := "notifier"
		_, err := s.svc.Interactions.RecordInteraction(ctx, models.CreateInteractionRequest{
			Phone: req.Phone,
			Kind:  "bot_reply",
			Text:  req.Text,
			Agent: &agentName,
		})
		return err
	})

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message_id": result.MessageID,
		"simulated":  result.Simulated,
	})
}

// RegisterNotification records a notification send for deduplication.
func (s *Server) RegisterNotification(c *gin.Context) {
	var req registerNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	row, created, err := s.svc.Notifications.RecordNotification(c.Request.Context(), req.InstallmentID, req.Phone, req.Kind)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	body := gin.H{"created": created}
	if row != nil {
		body["id"] = row.ID
	}
	c.JSON(http.StatusOK, body)
}

// reminderWindow pairs a days-until-due horizon with its notification kind.
type reminderWindow struct {
	days int
	kind string
}

var reminderWindows = []reminderWindow{
	{days: 7, kind: "reminder_d7"},
	{days: 3, kind: "reminder_d3"},
	{days: 1, kind: "reminder_d1"},
}

// RunReminders scans mirrored installments due in 7, 3 and 1 days and
// sends the corresponding reminder to each guardian, at most once per
// (installment, kind).
func (s *Server) RunReminders(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	scanned, sent := 0, 0
	for _, window := range reminderWindows {
		from := now.AddDate(0, 0, window.days).Truncate(24 * time.Hour)
		to := from.Add(24 * time.Hour)

		due, err := s.svc.Mirrors.PendingInstallmentsDueBetween(ctx, from, to)
		if err != nil {
			abortWithServiceError(c, err)
			return
		}
		scanned += len(due)
		for _, installment := range due {
			if s.sendReminder(ctx, installment, window) {
				sent++
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"scanned": scanned, "sent": sent})
}

// sendReminder delivers one reminder if it was not already sent.
func (s *Server) sendReminder(ctx context.Context, installment *ent.InstallmentMirror, window reminderWindow) bool {
	guardian, err := s.svc.Mirrors.GuardianForStudent(ctx, installment.StudentID)
	if err != nil {
		return false
	}
	_, created, err := s.svc.Notifications.RecordNotification(ctx, installment.ID, guardian.Phone, window.kind)
	if err != nil || !created {
		return false
	}

	text := fmt.Sprintf("📅 Recordatorio: la cuota %d de $%s vence el %s. Si querés, te paso el link de pago.",
		installment.Sequence,
		agent.FormatMoney(installment.Amount),
		installment.DueDate.Format("02/01"))
	installmentID := installment.ID
	phone := guardian.Phone
	s.submit("send-reminder", func(jobCtx context.Context) error {
		result := s.wa.Notify(jobCtx, phone, text)
		if s.wa != nil && result.MessageID == "" {
			return fmt.Errorf("reminder delivery failed for %s", installmentID)
		}
		return nil
	})
	return true
}
