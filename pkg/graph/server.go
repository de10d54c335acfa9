package graph

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/colegio-digital/gestor/pkg/config"
)

// Server is the analytics REST service.
type Server struct {
	cfg      *config.GraphConfig
	store    *Store
	reports  *Reports
	etl      *ETL
	enricher *Enricher
	engine   *gin.Engine
}

// NewServer wires the report and ETL surface. etl and enricher may be nil
// when the service runs read-only.
func NewServer(cfg *config.GraphConfig, store *Store, reports *Reports, etl *ETL, enricher *Enricher) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:      cfg,
		store:    store,
		reports:  reports,
		etl:      etl,
		enricher: enricher,
		engine:   engine,
	}

	engine.GET("/health", s.Health)

	v1 := engine.Group("/api/v1")
	reportGroup := v1.Group("/reports")
	reportGroup.GET("/desertion-risk", s.DesertionRisk)
	reportGroup.GET("/cash-projection", s.CashProjection)
	reportGroup.GET("/payment-patterns", s.PaymentPatterns)
	reportGroup.GET("/clusters", s.Clusters)
	reportGroup.GET("/executive-summary", s.ExecutiveSummary)

	etlGroup := v1.Group("/etl")
	etlGroup.POST("/run", s.RunETL)
	etlGroup.POST("/enrich", s.RunEnrichment)

	return s
}

// Handler returns the http.Handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Health reports service and graph-store status.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"service":   "graph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.store == nil {
		body["neo4j"] = "not configured"
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Verify(ctx); err != nil {
		body["status"] = "unhealthy"
		body["neo4j"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["neo4j"] = "connected"
	c.JSON(http.StatusOK, body)
}

// DesertionRisk handles GET /api/v1/reports/desertion-risk?threshold=.
func (s *Server) DesertionRisk(c *gin.Context) {
	threshold := 40
	if raw := c.Query("threshold"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 || value > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be 0-100"})
			return
		}
		threshold = value
	}

	rows, err := s.reports.DesertionRisk(c.Request.Context(), threshold)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     len(rows),
		"threshold": threshold,
		"students":  rows,
	})
}

// CashProjection handles GET /api/v1/reports/cash-projection?days=.
func (s *Server) CashProjection(c *gin.Context) {
	days := 90
	if raw := c.Query("days"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 7 || value > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be 7-365"})
			return
		}
		days = value
	}

	projection, err := s.reports.CashProjection(c.Request.Context(), days)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, projection)
}

// PaymentPatterns handles GET /api/v1/reports/payment-patterns.
func (s *Server) PaymentPatterns(c *gin.Context) {
	rows, err := s.reports.PaymentPatterns(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(rows), "guardians": rows})
}

// Clusters handles GET /api/v1/reports/clusters.
func (s *Server) Clusters(c *gin.Context) {
	rows, err := s.reports.Clusters(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": rows})
}

// ExecutiveSummary handles GET /api/v1/reports/executive-summary.
func (s *Server) ExecutiveSummary(c *gin.Context) {
	summary, err := s.reports.ExecutiveSummary(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunETL handles POST /api/v1/etl/run.
func (s *Server) RunETL(c *gin.Context) {
	if s.etl == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "etl not configured"})
		return
	}
	counts, err := s.etl.SyncAll(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "counts": counts})
}

// RunEnrichment handles POST /api/v1/etl/enrich.
func (s *Server) RunEnrichment(c *gin.Context) {
	if s.enricher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "enrichment not configured"})
		return
	}
	result, err := s.enricher.EnrichAll(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": result})
}

func (s *Server) abort(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
