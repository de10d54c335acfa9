package services

import (
	"context"
	"fmt"
	"time"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/tokenusage"
	"github.com/colegio-digital/gestor/pkg/tokentrack"
)

// TokenUsageService persists finalized per-query token accounting.
type TokenUsageService struct {
	client *ent.Client
}

// NewTokenUsageService creates a new TokenUsageService
func NewTokenUsageService(client *ent.Client) *TokenUsageService {
	return &TokenUsageService{client: client}
}

// SaveSummary stores one finalized tracking session.
func (s *TokenUsageService) SaveSummary(httpCtx context.Context, summary tokentrack.Summary) (*ent.TokenUsage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if summary.QueryID == "" {
		return nil, NewValidationError("query_id", "query id is required")
	}

	records := make([]map[string]interface{}, 0, len(summary.Records))
	for _, rec := range summary.Records {
		records = append(records, map[string]interface{}{
			"node":              rec.Node,
			"kind":              rec.Kind,
			"prompt_tokens":     rec.PromptTokens,
			"completion_tokens": rec.CompletionTokens,
			"total_tokens":      rec.TotalTokens,
			"timestamp":         rec.Timestamp.Format(time.RFC3339Nano),
		})
	}

	row, err := s.client.TokenUsage.Create().
		SetID(summary.QueryID).
		SetPhone(summary.Phone).
		SetQuestion(summary.Question).
		SetProvider(summary.Provider).
		SetModel(summary.Model).
		SetPromptTokens(summary.PromptTokens).
		SetCompletionTokens(summary.CompletionTokens).
		SetTotalTokens(summary.TotalTokens).
		SetLlmCalls(summary.LLMCalls).
		SetRecords(records).
		SetStartedAt(summary.StartedAt).
		SetFinishedAt(summary.FinishedAt).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to save token usage: %w", err)
	}
	return row, nil
}

// GetUsage retrieves the stored aggregate for one query.
func (s *TokenUsageService) GetUsage(ctx context.Context, queryID string) (*ent.TokenUsage, error) {
	row, err := s.client.TokenUsage.Get(ctx, queryID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token usage: %w", err)
	}
	return row, nil
}

// UsageByPhone retrieves recent usage rows for a handle, newest first.
func (s *TokenUsageService) UsageByPhone(ctx context.Context, phone string, limit int) ([]*ent.TokenUsage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.client.TokenUsage.Query().
		Where(tokenusage.PhoneEQ(phone)).
		Order(ent.Desc(tokenusage.FieldStartedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list token usage: %w", err)
	}
	return rows, nil
}
