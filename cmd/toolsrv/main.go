// The tool server exposes the agent tool catalog over REST and JSON-RPC,
// in mock mode or backed by the live ERP and analytics services.
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
	"github.com/colegio-digital/gestor/pkg/erp"
	"github.com/colegio-digital/gestor/pkg/tools"
	"github.com/colegio-digital/gestor/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel(),
	})))

	cfg := config.LoadToolServer()
	slog.Info("Starting toolsrv",
		"version", version.Full(),
		"port", cfg.Port,
		"mock_mode", cfg.MockMode,
		"erp_url", cfg.ERPBaseURL,
		"graph_url", cfg.GraphURL)

	registry := tools.NewRegistry(cfg.MockMode)
	tools.RegisterERPTools(registry, tools.ERPToolConfig{
		Client: erp.NewClient(cfg.ERPBaseURL),
		Mock:   cfg.MockMode,
	})
	tools.RegisterAdminTools(registry, tools.NewTicketStore())
	tools.RegisterNotifTools(registry, tools.NotifToolConfig{
		OrchestratorURL: cfg.OrchestratorURL,
	})
	tools.RegisterKGTools(registry, tools.KGToolConfig{
		GraphURL: cfg.GraphURL,
	})
	tools.RegisterInstitutionalTools(registry)
	slog.Info("Tool registry ready", "tools", len(registry.List("")))

	server := tools.NewServer(registry)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Tool server stopped")
}
