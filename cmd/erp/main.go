// The ERP server serves the school's academic and billing records and
// notifies the orchestrator of confirmed payments.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/database"
	"github.com/colegio-digital/gestor/pkg/erpserver"
	"github.com/colegio-digital/gestor/pkg/version"
	"github.com/colegio-digital/gestor/pkg/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel(),
	})))

	cfg := config.LoadERP()
	slog.Info("Starting erp",
		"version", version.Full(),
		"port", cfg.Port,
		"orchestrator_url", cfg.OrchestratorURL,
		"overdue_interval", cfg.OverdueInterval)

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

	if err := erpserver.SeedDemo(ctx, dbClient.Client); err != nil {
		slog.Error("Failed to seed demo data", "error", err)
		os.Exit(1)
	}

	store := erpserver.NewStore(dbClient.Client)
	hooks := webhook.NewSender(cfg.OrchestratorURL, cfg.WebhookMaxRetries, cfg.WebhookBaseDelay)

	runner := erpserver.NewOverdueRunner(store, cfg.OverdueInterval)
	runner.Start()
	slog.Info("Overdue scanner started", "interval", cfg.OverdueInterval)

	server := erpserver.NewServer(cfg, dbClient, store, hooks)
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

	runner.Stop()
	slog.Info("Overdue scanner stopped")

	// Let in-flight webhook deliveries finish their retries.
	hooks.Wait()

	slog.Info("ERP stopped")
}
