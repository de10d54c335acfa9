// The graph analytics server syncs the orchestrator's cache tables into
// neo4j, enriches guardians with LLM payer profiles and serves the
// desertion-risk and collection reports.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	"github.com/joho/godotenv"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/graph"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel(),
	})))

	cfg := config.LoadGraph()
	slog.Info("Starting graphsrv",
		"version", version.Full(),
		"port", cfg.Port,
		"neo4j_uri", cfg.Neo4jURI,
		"llm_provider", cfg.LLM.Provider)

	ctx := context.Background()

	store, err := graph.NewStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		slog.Error("Failed to create neo4j driver", "uri", cfg.Neo4jURI, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			slog.Error("Error closing neo4j driver", "error", err)
		}
	}()

	verifyCtx, cancelVerify := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Verify(verifyCtx); err != nil {
		// Non-fatal: neo4j may come up after us; /health keeps reporting it.
		slog.Warn("neo4j unreachable at startup", "uri", cfg.Neo4jURI, "error", err)
	} else if err := store.InitConstraints(verifyCtx); err != nil {
		slog.Error("Failed to initialize graph constraints", "error", err)
		cancelVerify()
		os.Exit(1)
	}
	cancelVerify()

	var llmClient llm.Client
	if client, err := llm.New(ctx, cfg.LLM); err != nil {
		slog.Warn("LLM client unavailable, enrichment and executive summary disabled", "error", err)
	} else {
		llmClient = client
	}

	var etl *graph.ETL
	if cfg.OrchestratorDB != "" {
		cacheDB, err := sql.Open("pgx", cfg.OrchestratorDB)
		if err != nil {
			slog.Error("Failed to open orchestrator database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = cacheDB.Close() }()
		etl = graph.NewETL(store, cacheDB)
	} else {
		slog.Warn("DATABASE_URL not set, ETL disabled")
	}

	var enricher *graph.Enricher
	if llmClient != nil {
		enricher = graph.NewEnricher(store, llmClient)
	}

	reports := graph.NewReports(store, llmClient)
	server := graph.NewServer(cfg, store, reports, etl, enricher)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Graph server stopped")
}
