package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrchestratorDefaults(t *testing.T) {
	cfg, err := LoadOrchestrator()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, RuntimeHierarchical, cfg.Agent.Runtime)
	assert.Equal(t, 3, cfg.Agent.MaxReplans)
	assert.Equal(t, 3, cfg.Agent.MaxCorrections)
	assert.Equal(t, 5, cfg.Agent.MaxPlannerIters)
	assert.Equal(t, 30*time.Second, cfg.Agent.ExecutionTimeout)
	assert.Equal(t, 120*time.Second, cfg.Agent.RequestTimeout)
	assert.Equal(t, 4, cfg.WorkerCount)
}

func TestLoadOrchestratorRuntimeSelection(t *testing.T) {
	t.Setenv("AGENT_RUNTIME", "codeplanner")
	cfg, err := LoadOrchestrator()
	require.NoError(t, err)
	assert.Equal(t, RuntimeCodePlanner, cfg.Agent.Runtime)

	t.Setenv("AGENT_RUNTIME", "langgraph")
	_, err = LoadOrchestrator()
	assert.Error(t, err)
}

func TestLoadOrchestratorInvalidProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	_, err := LoadOrchestrator()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_PROVIDER")
}

func TestLoadERPWebhookSettings(t *testing.T) {
	t.Setenv("WEBHOOK_MAX_RETRIES", "5")
	t.Setenv("WEBHOOK_BASE_DELAY", "0.5")

	cfg := LoadERP()
	assert.Equal(t, 5, cfg.WebhookMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.WebhookBaseDelay)
}

func TestLoadToolServerMockDefault(t *testing.T) {
	cfg := LoadToolServer()
	assert.True(t, cfg.MockMode)

	t.Setenv("MOCK_MODE", "false")
	cfg = LoadToolServer()
	assert.False(t, cfg.MockMode)
}

func TestLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, LogLevel())

	t.Setenv("LOG_LEVEL", "nonsense")
	assert.Equal(t, slog.LevelInfo, LogLevel())
}
