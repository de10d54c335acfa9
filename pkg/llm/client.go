// Package llm provides the model client used by the agent runtime, with
// OpenAI and Google backends selected by configuration, and a tracking
// wrapper that accounts token usage per request.
package llm

import (
	"context"
	"fmt"

	"github.com/colegio-digital/gestor/pkg/config"
)

// Message roles accepted by both backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the provider-neutral completion result. PromptTokens and
// CompletionTokens are zero when the provider returned no usage metadata;
// HasUsage distinguishes that from a genuinely empty prompt.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	HasUsage         bool
}

// Client is the minimal completion interface the runtime depends on.
type Client interface {
	// Complete renders a chat completion for the given conversation.
	Complete(ctx context.Context, messages []Message) (*Response, error)
	// Provider returns the configured provider tag ("openai", "google").
	Provider() string
	// Model returns the configured model name.
	Model() string
}

// New constructs the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	case "google":
		return NewGoogleClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
