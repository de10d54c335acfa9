package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/services"
	"github.com/colegio-digital/gestor/pkg/tokentrack"
	"github.com/colegio-digital/gestor/pkg/whatsapp"
)

// VerifyWhatsApp answers the messaging provider's subscription handshake.
// The challenge is echoed back as an integer only when the verify token
// matches the configured one.
func (s *Server) VerifyWhatsApp(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != s.cfg.WhatsApp.VerifyToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		return
	}
	value, err := strconv.Atoi(challenge)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		return
	}
	c.String(http.StatusOK, "%d", value)
}

// InboundWhatsApp runs the agent pipeline for one inbound message and
// sends the reply back over the messaging transport.
func (s *Server) InboundWhatsApp(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	msg, err := whatsapp.ParseInbound(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	queryID := uuid.New().String()
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Agent.RequestTimeout)
	defer cancel()

	session := tokentrack.NewSession(queryID, msg.FromNumber, msg.Text, s.provider, s.model)
	ctx = tokentrack.WithSession(ctx, session)

	reply, err := s.agent.Handle(ctx, queryID, msg)
	summary := session.Finalize(nil)

	if err != nil {
		s.recordExchange(msg, nil, summary)
		c.JSON(http.StatusOK, gin.H{"success": false, "query_id": queryID})
		return
	}

	s.wa.Notify(ctx, msg.FromNumber, reply.Text)
	s.recordExchange(msg, reply, summary)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"query_id": reply.QueryID,
		"agent":    reply.Agent,
		"reply":    reply.Text,
	})
}

// recordExchange persists the inbound row, the bot reply row and the token
// summary on the background pool.
func (s *Server) recordExchange(msg models.InboundMessage, reply *models.AgentReply, summary tokentrack.Summary) {
	s.submit("record-exchange", func(ctx context.Context) error {
		if s.svc.Interactions != nil {
			_, err := s.svc.Interactions.RecordInteraction(ctx, models.CreateInteractionRequest{
				Phone: msg.FromNumber,
				Kind:  "inbound",
				Text:  msg.Text,
			})
			if err != nil {
				return err
			}
			if reply != nil {
				agentName := reply.Agent
				_, err = s.svc.Interactions.RecordInteraction(ctx, models.CreateInteractionRequest{
					Phone:  msg.FromNumber,
					Kind:   "bot_reply",
					Text:   reply.Text,
					Agent:  &agentName,
					Extras: map[string]interface{}{"query_id": reply.QueryID},
				})
				if err != nil {
					return err
				}
			}
		}
		if s.svc.TokenUsage != nil && summary.QueryID != "" {
			if _, err := s.svc.TokenUsage.SaveSummary(ctx, summary); err != nil {
				return err
			}
		}
		return nil
	})
}

// PaymentConfirmed applies a payment_confirmed event to the mirror and
// enqueues the guardian's confirmation message.
func (s *Server) PaymentConfirmed(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid event"})
		return
	}
	var data models.PaymentConfirmedData
	if err := decodeEventData(event.Data, &data); err != nil || data.InstallmentID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid payment_confirmed data"})
		return
	}

	paidAt, err := time.Parse(time.RFC3339, data.PaidAt)
	if err != nil {
		paidAt = time.Now().UTC()
	}

	mirror, err := s.svc.Mirrors.MarkInstallmentPaid(c.Request.Context(), data.InstallmentID, paidAt)
	if errors.Is(err, services.ErrNotFound) {
		// A mirror we never saw is not worth an ERP retry loop.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	s.notifyPaymentConfirmed(data, mirror.Amount)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// notifyPaymentConfirmed sends the confirmation exactly once per
// installment, deduplicated through NotificationSent.
func (s *Server) notifyPaymentConfirmed(data models.PaymentConfirmedData, amount float64) {
	s.submit("payment-confirmation", func(ctx context.Context) error {
		guardian, err := s.svc.Mirrors.GuardianForStudent(ctx, data.StudentID)
		if err != nil {
			return fmt.Errorf("no guardian for student %s: %w", data.StudentID, err)
		}
		_, created, err := s.svc.Notifications.RecordNotification(ctx, data.InstallmentID, guardian.Phone, "payment_confirmation")
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		text := fmt.Sprintf("✅ Registramos el pago de tu cuota por $%s. ¡Gracias!",
			agent.FormatMoney(amount))
		s.wa.Notify(ctx, guardian.Phone, text)
		return nil
	})
}

// InstallmentGenerated upserts the mirror row for a new installment.
func (s *Server) InstallmentGenerated(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid event"})
		return
	}
	var data models.InstallmentGeneratedData
	if err := decodeEventData(event.Data, &data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid installment_generated data"})
		return
	}
	if _, err := s.svc.Mirrors.UpsertInstallment(c.Request.Context(), data); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StudentUpdated upserts the mirror row for a student change.
func (s *Server) StudentUpdated(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid event"})
		return
	}
	var data models.StudentUpdatedData
	if err := decodeEventData(event.Data, &data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid student_updated data"})
		return
	}
	if _, err := s.svc.Mirrors.UpsertStudent(c.Request.Context(), data); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GuardianUpdated upserts the mirror row for a guardian change.
func (s *Server) GuardianUpdated(c *gin.Context) {
	var event models.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid event"})
		return
	}
	var data models.GuardianUpdatedData
	if err := decodeEventData(event.Data, &data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid guardian_updated data"})
		return
	}
	if _, err := s.svc.Mirrors.UpsertGuardian(c.Request.Context(), data); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// decodeEventData re-decodes the loosely typed event payload into its
// concrete struct.
func decodeEventData(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
