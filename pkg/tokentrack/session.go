// Package tokentrack accounts LLM token consumption per inbound query.
// A Session is bound to the request context and every LLM invocation in
// the runtime appends one InferenceRecord to it.
package tokentrack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// InferenceRecord is the accounting entry for a single LLM invocation.
type InferenceRecord struct {
	Node             string                 `json:"node"`
	Kind             string                 `json:"kind"`
	PromptTokens     int                    `json:"prompt_tokens"`
	CompletionTokens int                    `json:"completion_tokens"`
	TotalTokens      int                    `json:"total_tokens"`
	Timestamp        time.Time              `json:"timestamp"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Summary is the finalized per-query aggregate, ready for persistence.
type Summary struct {
	QueryID          string            `json:"query_id"`
	Phone            string            `json:"phone"`
	Question         string            `json:"question"`
	Provider         string            `json:"provider"`
	Model            string            `json:"model"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	TotalTokens      int               `json:"total_tokens"`
	LLMCalls         int               `json:"llm_calls"`
	Records          []InferenceRecord `json:"records"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	DurationMs       int64             `json:"duration_ms"`
}

// Session accumulates inference records for one inbound query.
// Safe for concurrent use; a single request may fan out tool-side LLM calls.
type Session struct {
	mu sync.Mutex

	queryID   string
	phone     string
	question  string
	provider  string
	model     string
	startedAt time.Time
	records   []InferenceRecord

	promptTotal     int
	completionTotal int
	total           int
}

// NewSession starts accounting for one query.
func NewSession(queryID, phone, question, provider, model string) *Session {
	return &Session{
		queryID:   queryID,
		phone:     phone,
		question:  question,
		provider:  provider,
		model:     model,
		startedAt: time.Now(),
	}
}

// QueryID returns the query identifier this session was started with.
func (s *Session) QueryID() string {
	if s == nil {
		return ""
	}
	return s.queryID
}

// Record appends one inference record. Nil-safe so callers never need to
// check whether tracking is active.
func (s *Session) Record(node, kind string, promptTokens, completionTokens int, metadata map[string]interface{}) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := InferenceRecord{
		Node:             node,
		Kind:             kind,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Timestamp:        time.Now(),
		Metadata:         metadata,
	}
	s.records = append(s.records, rec)
	s.promptTotal += rec.PromptTokens
	s.completionTotal += rec.CompletionTokens
	s.total += rec.TotalTokens
}

// Totals returns the running aggregates.
func (s *Session) Totals() (prompt, completion, total, calls int) {
	if s == nil {
		return 0, 0, 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptTotal, s.completionTotal, s.total, len(s.records)
}

// Finalize computes the aggregate, emits the [TOKEN_USAGE] log line plus a
// human-readable block, and returns the summary for persistence.
func (s *Session) Finalize(logger *slog.Logger) Summary {
	if s == nil {
		return Summary{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := time.Now()
	summary := Summary{
		QueryID:          s.queryID,
		Phone:            s.phone,
		Question:         s.question,
		Provider:         s.provider,
		Model:            s.model,
		PromptTokens:     s.promptTotal,
		CompletionTokens: s.completionTotal,
		TotalTokens:      s.total,
		LLMCalls:         len(s.records),
		Records:          append([]InferenceRecord(nil), s.records...),
		StartedAt:        s.startedAt,
		FinishedAt:       finished,
		DurationMs:       finished.Sub(s.startedAt).Milliseconds(),
	}

	if payload, err := json.Marshal(summary); err == nil {
		logger.Info("[TOKEN_USAGE] " + string(payload))
	} else {
		logger.Error("Failed to marshal token usage summary", "query_id", s.queryID, "error", err)
	}
	logger.Info(formatBlock(summary))

	return summary
}

func formatBlock(s Summary) string {
	var b strings.Builder
	b.WriteString("\n========== TOKEN USAGE ==========\n")
	fmt.Fprintf(&b, "Query:      %s\n", s.QueryID)
	fmt.Fprintf(&b, "Phone:      %s\n", s.Phone)
	fmt.Fprintf(&b, "Model:      %s/%s\n", s.Provider, s.Model)
	fmt.Fprintf(&b, "LLM calls:  %d\n", s.LLMCalls)
	for _, rec := range s.Records {
		fmt.Fprintf(&b, "  - %-22s prompt=%-6d completion=%-6d total=%d\n",
			rec.Node, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens)
	}
	fmt.Fprintf(&b, "Prompt:     %d\n", s.PromptTokens)
	fmt.Fprintf(&b, "Completion: %d\n", s.CompletionTokens)
	fmt.Fprintf(&b, "Total:      %d\n", s.TotalTokens)
	fmt.Fprintf(&b, "Duration:   %dms\n", s.DurationMs)
	b.WriteString("=================================")
	return b.String()
}
