// Package config assembles per-service configuration from environment
// variables, with defaults suitable for local development.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// AgentRuntime selects which agent architecture dispatches inbound messages.
type AgentRuntime string

const (
	RuntimeHierarchical AgentRuntime = "hierarchical"
	RuntimeCodePlanner  AgentRuntime = "codeplanner"
	RuntimeKeyword      AgentRuntime = "keyword"
)

// LLMConfig holds provider selection and sampling controls.
type LLMConfig struct {
	Provider     string // "openai" or "google"
	Model        string
	Temperature  float32
	MaxTokens    int
	OpenAIAPIKey string
	GoogleAPIKey string
}

// WhatsAppConfig holds messaging transport settings.
// A token prefixed "dummy" switches the sender to simulation mode.
type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	VerifyToken   string
	BaseURL       string
}

// AgentConfig bounds the agent runtime loops.
type AgentConfig struct {
	Runtime          AgentRuntime
	MaxReplans       int
	MaxCorrections   int
	MaxPlannerIters  int
	ExecutionTimeout time.Duration
	RequestTimeout   time.Duration
	CheckpointPath   string
}

// OrchestratorConfig is the configuration for the main orchestrator service.
type OrchestratorConfig struct {
	Port        string
	ERPBaseURL  string
	ToolsURL    string
	LLM         LLMConfig
	WhatsApp    WhatsAppConfig
	Agent       AgentConfig
	WorkerCount int
}

// ERPConfig is the configuration for the ERP service.
type ERPConfig struct {
	Port              string
	OrchestratorURL   string
	WebhookMaxRetries int
	WebhookBaseDelay  time.Duration
	OverdueInterval   time.Duration
}

// ToolServerConfig is the configuration for the tool server.
type ToolServerConfig struct {
	Port            string
	MockMode        bool
	ERPBaseURL      string
	GraphURL        string
	OrchestratorURL string
}

// GraphConfig is the configuration for the analytics service.
type GraphConfig struct {
	Port           string
	Neo4jURI       string
	Neo4jUser      string
	Neo4jPassword  string
	OrchestratorDB string
	LLM            LLMConfig
}

// LoadLLM reads the LLM provider configuration from the environment.
func LoadLLM() LLMConfig {
	return LLMConfig{
		Provider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		Model:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		Temperature:  float32(getEnvFloat("LLM_TEMPERATURE", 0.3)),
		MaxTokens:    getEnvInt("LLM_MAX_TOKENS", 1024),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
	}
}

// LoadOrchestrator reads the orchestrator configuration from the environment.
func LoadOrchestrator() (*OrchestratorConfig, error) {
	cfg := &OrchestratorConfig{
		Port:       getEnv("API_PORT", "8000"),
		ERPBaseURL: getEnv("ERP_URL", getEnv("MOCK_ERP_URL", "http://localhost:8001")),
		ToolsURL:   getEnv("MCP_TOOLS_URL", "http://localhost:8002"),
		LLM:        LoadLLM(),
		WhatsApp: WhatsAppConfig{
			Token:         getEnv("WHATSAPP_TOKEN", "dummy-token"),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", "verify-me"),
			BaseURL:       getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"),
		},
		Agent: AgentConfig{
			Runtime:          AgentRuntime(getEnv("AGENT_RUNTIME", string(RuntimeHierarchical))),
			MaxReplans:       getEnvInt("MAX_REPLANS", 3),
			MaxCorrections:   getEnvInt("CODEPLANNER_MAX_CORRECTIONS", 3),
			MaxPlannerIters:  getEnvInt("CODEPLANNER_MAX_ITERATIONS", 5),
			ExecutionTimeout: getEnvSeconds("CODEPLANNER_TIMEOUT_SECONDS", 30*time.Second),
			RequestTimeout:   getEnvSeconds("REQUEST_TIMEOUT_SECONDS", 120*time.Second),
			CheckpointPath:   getEnv("CHECKPOINT_PATH", "gestor-checkpoints.db"),
		},
		WorkerCount: getEnvInt("WORKER_COUNT", 4),
	}

	switch cfg.Agent.Runtime {
	case RuntimeHierarchical, RuntimeCodePlanner, RuntimeKeyword:
	default:
		return nil, fmt.Errorf("invalid AGENT_RUNTIME %q", cfg.Agent.Runtime)
	}
	if err := validateLLM(cfg.LLM); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadERP reads the ERP service configuration from the environment.
func LoadERP() *ERPConfig {
	return &ERPConfig{
		Port:              getEnv("ERP_PORT", "8001"),
		OrchestratorURL:   getEnv("GESTOR_WS_URL", "http://localhost:8000"),
		WebhookMaxRetries: getEnvInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:  time.Duration(getEnvFloat("WEBHOOK_BASE_DELAY", 1.0) * float64(time.Second)),
		OverdueInterval:   getEnvSeconds("OVERDUE_INTERVAL_SECONDS", 3600*time.Second),
	}
}

// LoadToolServer reads the tool server configuration from the environment.
func LoadToolServer() *ToolServerConfig {
	return &ToolServerConfig{
		Port:            getEnv("TOOLS_PORT", "8002"),
		MockMode:        getEnvBool("MOCK_MODE", true),
		ERPBaseURL:      getEnv("ERP_URL", getEnv("MOCK_ERP_URL", "http://localhost:8001")),
		GraphURL:        getEnv("KNOWLEDGE_GRAPH_URL", "http://localhost:8003"),
		OrchestratorURL: getEnv("GESTOR_WS_URL", "http://localhost:8000"),
	}
}

// LoadGraph reads the analytics service configuration from the environment.
func LoadGraph() *GraphConfig {
	return &GraphConfig{
		Port:           getEnv("GRAPH_PORT", "8003"),
		Neo4jURI:       getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", ""),
		OrchestratorDB: getEnv("DATABASE_URL", ""),
		LLM:            LoadLLM(),
	}
}

func validateLLM(cfg LLMConfig) error {
	switch cfg.Provider {
	case "openai", "google":
		return nil
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q (want openai or google)", cfg.Provider)
	}
}

// LogLevel parses LOG_LEVEL into a slog level, defaulting to info.
func LogLevel() slog.Level {
	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
