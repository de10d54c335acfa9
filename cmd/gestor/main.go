// Gestor is the orchestrator server. It receives WhatsApp messages, runs the
// agent runtime and serves the admin and notification APIs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/agent/codeplanner"
	"github.com/colegio-digital/gestor/pkg/api"
	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/database"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/queue"
	"github.com/colegio-digital/gestor/pkg/services"
	"github.com/colegio-digital/gestor/pkg/toolclient"
	"github.com/colegio-digital/gestor/pkg/version"
	"github.com/colegio-digital/gestor/pkg/whatsapp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel(),
	})))

	cfg, err := config.LoadOrchestrator()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting gestor",
		"version", version.Full(),
		"port", cfg.Port,
		"runtime", cfg.Agent.Runtime,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model)

	ctx := context.Background()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	svc := api.Services{
		Mirrors:       services.NewMirrorService(dbClient.Client),
		Interactions:  services.NewInteractionService(dbClient.Client),
		Tickets:       services.NewTicketService(dbClient.Client),
		Notifications: services.NewNotificationService(dbClient.Client),
		TokenUsage:    services.NewTokenUsageService(dbClient.Client),
	}

	wa := whatsapp.NewService(cfg.WhatsApp)
	if wa.Simulated() {
		slog.Warn("WhatsApp sender running in simulation mode")
	}

	llmClient, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	tracked := llm.NewTracked(llmClient)

	toolsClient := toolclient.NewClient(cfg.ToolsURL)
	if err := toolsClient.Ping(ctx); err != nil {
		// Non-fatal: the tool server may come up after us.
		slog.Warn("Tool server unreachable at startup", "url", cfg.ToolsURL, "error", err)
	}

	handler, cleanup, err := buildRuntime(cfg, tracked, toolsClient, svc.Mirrors)
	if err != nil {
		slog.Error("Failed to initialize agent runtime", "runtime", cfg.Agent.Runtime, "error", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.Info("Agent runtime initialized", "runtime", cfg.Agent.Runtime)

	pool := queue.NewPool(cfg.WorkerCount, cfg.Agent.RequestTimeout)
	pool.Start()
	slog.Info("Worker pool started", "workers", cfg.WorkerCount)

	server := api.NewServer(cfg, dbClient, handler, tracked, svc, wa, pool)
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

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	pool.Stop()
	slog.Info("Worker pool stopped")

	slog.Info("Gestor stopped")
}

// buildRuntime selects the agent runtime per AGENT_RUNTIME. The returned
// cleanup closes runtime-owned resources (the checkpoint store).
func buildRuntime(cfg *config.OrchestratorConfig, tracked agent.Completer, toolsClient *toolclient.Client, mirrors *services.MirrorService) (api.MessageHandler, func(), error) {
	noop := func() {}

	switch cfg.Agent.Runtime {
	case config.RuntimeHierarchical:
		checkpoints, err := agent.NewBoltCheckpointer(cfg.Agent.CheckpointPath)
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() {
			if err := checkpoints.Close(); err != nil {
				slog.Error("Error closing checkpoint store", "error", err)
			}
		}
		return agent.NewRunner(tracked, toolsClient, mirrors, checkpoints, cfg.Agent), cleanup, nil

	case config.RuntimeCodePlanner:
		return codeplanner.NewPlanner(tracked, toolsClient, cfg.Agent), noop, nil

	case config.RuntimeKeyword:
		return agent.NewKeywordRunner(toolsClient), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown agent runtime %q", cfg.Agent.Runtime)
	}
}
