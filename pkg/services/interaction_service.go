package services

import (
	"context"
	"fmt"
	"time"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/interaction"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/google/uuid"
)

// InteractionService manages the append-only conversation log.
type InteractionService struct {
	client *ent.Client
}

// NewInteractionService creates a new InteractionService
func NewInteractionService(client *ent.Client) *InteractionService {
	return &InteractionService{client: client}
}

// RecordInteraction appends one conversation row.
func (s *InteractionService) RecordInteraction(httpCtx context.Context, req models.CreateInteractionRequest) (*ent.Interaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if req.Phone == "" {
		return nil, NewValidationError("phone", "phone is required")
	}

	builder := s.client.Interaction.Create().
		SetID(uuid.New().String()).
		SetPhone(req.Phone).
		SetKind(interaction.Kind(req.Kind)).
		SetText(req.Text).
		SetCreatedAt(time.Now())

	if req.InstallmentID != nil {
		builder = builder.SetInstallmentID(*req.InstallmentID)
	}
	if req.Agent != nil {
		builder = builder.SetAgent(*req.Agent)
	}
	if req.Extras != nil {
		builder = builder.SetExtras(req.Extras)
	}

	row, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to record interaction: %w", err)
	}
	return row, nil
}

// History retrieves the most recent interactions for a handle, newest first.
func (s *InteractionService) History(ctx context.Context, phone string, limit int) ([]*ent.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.client.Interaction.Query().
		Where(interaction.PhoneEQ(phone)).
		Order(ent.Desc(interaction.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction history: %w", err)
	}
	return rows, nil
}
