// Package api exposes the orchestrator's HTTP surface: the messaging
// webhook, the ERP webhook fan-in, the admin ticket API and the
// notification endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/database"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/queue"
	"github.com/colegio-digital/gestor/pkg/services"
	"github.com/colegio-digital/gestor/pkg/whatsapp"
)

// MessageHandler is one agent runtime: hierarchical, codeplanner or
// keyword, selected at startup by AGENT_RUNTIME.
type MessageHandler interface {
	Handle(ctx context.Context, queryID string, msg models.InboundMessage) (*models.AgentReply, error)
}

// Services bundles the persistence layer the handlers depend on.
type Services struct {
	Mirrors       *services.MirrorService
	Interactions  *services.InteractionService
	Tickets       *services.TicketService
	Notifications *services.NotificationService
	TokenUsage    *services.TokenUsageService
}

// Server is the orchestrator API server.
type Server struct {
	cfg      *config.OrchestratorConfig
	db       *database.Client
	agent    MessageHandler
	llm      agent.Completer
	provider string
	model    string
	svc      Services
	wa       *whatsapp.Service
	pool     *queue.Pool
	engine   *gin.Engine
}

// NewServer wires the orchestrator surface. db may be nil (health reports
// degraded), wa may be nil (outbound disabled), pool may be nil
// (background work runs inline).
func NewServer(cfg *config.OrchestratorConfig, db *database.Client, handler MessageHandler, completer agent.Completer, svc Services, wa *whatsapp.Service, pool *queue.Pool) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:      cfg,
		db:       db,
		agent:    handler,
		llm:      completer,
		provider: cfg.LLM.Provider,
		model:    cfg.LLM.Model,
		svc:      svc,
		wa:       wa,
		pool:     pool,
		engine:   engine,
	}

	engine.GET("/health", s.Health)

	engine.GET("/webhook/whatsapp", s.VerifyWhatsApp)
	engine.POST("/webhook/whatsapp", s.InboundWhatsApp)

	erp := engine.Group("/webhook/erp")
	erp.POST("/payment-confirmed", s.PaymentConfirmed)
	erp.POST("/installment-generated", s.InstallmentGenerated)
	erp.POST("/student-updated", s.StudentUpdated)
	erp.POST("/guardian-updated", s.GuardianUpdated)

	v1 := engine.Group("/api/v1")
	admin := v1.Group("/admin")
	admin.GET("/tickets", s.ListTickets)
	admin.GET("/tickets/:id", s.GetTicket)
	admin.POST("/tickets/:id/responder", s.RespondTicket)

	notif := v1.Group("/notifications")
	notif.POST("/send", s.SendNotification)
	notif.POST("/register", s.RegisterNotification)
	notif.POST("/reminders", s.RunReminders)

	return s
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Health reports service and database status.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "gestor",
	}
	if s.pool != nil {
		body["workers"] = s.pool.Health()
	}

	if s.db == nil {
		body["database"] = "not configured"
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db.DB())
	body["database"] = dbHealth
	if err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// submit runs work on the background pool, or inline when no pool is
// configured (tests, one-shot tools).
func (s *Server) submit(name string, run func(ctx context.Context) error) {
	if s.pool != nil {
		s.pool.Submit(name, run)
		return
	}
	_ = run(context.Background())
}
