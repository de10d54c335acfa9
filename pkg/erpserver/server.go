package erpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/database"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/webhook"
)

// Server is the ERP REST service.
type Server struct {
	cfg    *config.ERPConfig
	db     *database.Client
	store  *Store
	hooks  *webhook.Sender
	engine *gin.Engine
}

// NewServer wires the ERP surface. hooks may be nil (no outbound webhooks,
// used by read-only tests).
func NewServer(cfg *config.ERPConfig, db *database.Client, store *Store, hooks *webhook.Sender) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:    cfg,
		db:     db,
		store:  store,
		hooks:  hooks,
		engine: engine,
	}

	engine.GET("/health", s.Health)

	v1 := engine.Group("/api/v1")
	v1.GET("/students", s.ListStudents)
	v1.GET("/students/:id", s.GetStudent)
	v1.GET("/students/:id/installments", s.GetStudentInstallments)
	v1.GET("/guardians/:id", s.GetGuardian)
	v1.GET("/guardians/by-handle/:handle", s.GetGuardianByHandle)
	v1.GET("/installments", s.ListInstallments)
	v1.GET("/installments/:id", s.GetInstallment)
	v1.POST("/payments/confirm", s.ConfirmPayment)

	return s
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Health reports service and database status.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"service":   "erp",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
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
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// ListStudents handles GET /api/v1/students?grade=&name=&active=.
func (s *Server) ListStudents(c *gin.Context) {
	filter := StudentFilter{
		Grade: c.Query("grade"),
		Name:  c.Query("name"),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "active must be a boolean"})
			return
		}
		filter.Active = &active
	}

	rows, err := s.store.ListStudents(c.Request.Context(), filter)
	if err != nil {
		s.abort(c, err, "")
		return
	}
	views := make([]models.StudentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toStudentView(row, nil))
	}
	c.JSON(http.StatusOK, views)
}

// GetStudent handles GET /api/v1/students/:id with embedded guardians.
func (s *Server) GetStudent(c *gin.Context) {
	id := c.Param("id")
	row, guardians, err := s.store.Student(c.Request.Context(), id)
	if err != nil {
		s.abort(c, err, fmt.Sprintf("student %s not found", id))
		return
	}
	c.JSON(http.StatusOK, toStudentView(row, guardians))
}

// GetStudentInstallments handles GET /api/v1/students/:id/installments?state=.
func (s *Server) GetStudentInstallments(c *gin.Context) {
	id := c.Param("id")
	rows, err := s.store.StudentInstallments(c.Request.Context(), id, c.Query("state"))
	if err != nil {
		s.abort(c, err, fmt.Sprintf("student %s not found", id))
		return
	}
	views := make([]models.InstallmentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toInstallmentView(row, nil))
	}
	c.JSON(http.StatusOK, views)
}

// GetGuardian handles GET /api/v1/guardians/:id with embedded students.
func (s *Server) GetGuardian(c *gin.Context) {
	id := c.Param("id")
	row, students, err := s.store.GuardianByID(c.Request.Context(), id)
	if err != nil {
		s.abort(c, err, fmt.Sprintf("guardian %s not found", id))
		return
	}
	c.JSON(http.StatusOK, toGuardianView(row, students))
}

// GetGuardianByHandle handles GET /api/v1/guardians/by-handle/:handle.
// The handle is normalized before matching.
func (s *Server) GetGuardianByHandle(c *gin.Context) {
	handle := c.Param("handle")
	row, students, err := s.store.GuardianByHandle(c.Request.Context(), handle)
	if err != nil {
		s.abort(c, err, fmt.Sprintf("guardian with handle %s not found", handle))
		return
	}
	c.JSON(http.StatusOK, toGuardianView(row, students))
}

// GetInstallment handles GET /api/v1/installments/:id with embedded student.
func (s *Server) GetInstallment(c *gin.Context) {
	id := c.Param("id")
	row, owner, err := s.store.Installment(c.Request.Context(), id)
	if err != nil {
		s.abort(c, err, fmt.Sprintf("installment %s not found", id))
		return
	}
	c.JSON(http.StatusOK, toInstallmentView(row, owner))
}

// ListInstallments handles GET /api/v1/installments with state, due_from,
// due_to and limit filters.
func (s *Server) ListInstallments(c *gin.Context) {
	filter := InstallmentFilter{State: c.Query("state")}

	if raw := c.Query("due_from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "due_from must be YYYY-MM-DD"})
			return
		}
		filter.DueFrom = &from
	}
	if raw := c.Query("due_to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "due_to must be YYYY-MM-DD"})
			return
		}
		filter.DueTo = &to
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	rows, err := s.store.ListInstallments(c.Request.Context(), filter)
	if err != nil {
		s.abort(c, err, "")
		return
	}
	views := make([]models.InstallmentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toInstallmentView(row, nil))
	}
	c.JSON(http.StatusOK, views)
}

// ConfirmPayment handles POST /api/v1/payments/confirm. On success the
// payment_confirmed webhook is enqueued for the orchestrator without
// blocking the response.
func (s *Server) ConfirmPayment(c *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "installment_id and amount are required"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "amount must be greater than zero"})
		return
	}

	payment, row, err := s.store.ConfirmPayment(c.Request.Context(), req)
	if errors.Is(err, ErrAlreadyPaid) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("installment %s is already paid", req.InstallmentID)})
		return
	}
	if err != nil {
		s.abort(c, err, fmt.Sprintf("installment %s not found", req.InstallmentID))
		return
	}

	if s.hooks != nil {
		s.hooks.Enqueue(webhook.NewPaymentConfirmed(models.PaymentConfirmedData{
			InstallmentID: row.ID,
			StudentID:     row.StudentID,
			Amount:        payment.Amount,
			PaidAt:        payment.PaidAt.UTC().Format(time.RFC3339),
		}))
	}

	slog.Info("Payment confirmed",
		"payment_id", payment.ID,
		"installment_id", row.ID,
		"amount", payment.Amount)

	c.JSON(http.StatusOK, models.ConfirmPaymentResponse{
		Success:     true,
		Message:     "payment confirmed",
		Payment:     toPaymentView(payment),
		Installment: toInstallmentView(row, nil),
	})
}

func (s *Server) abort(c *gin.Context, err error, notFoundDetail string) {
	if errors.Is(err, ErrNotFound) {
		if notFoundDetail == "" {
			notFoundDetail = "not found"
		}
		c.JSON(http.StatusNotFound, gin.H{"detail": notFoundDetail})
		return
	}
	slog.Error("ERP request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}
