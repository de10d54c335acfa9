package services

import (
	"context"
	"fmt"
	"time"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/ticket"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/google/uuid"
)

// TicketService manages escalation tickets.
type TicketService struct {
	client *ent.Client
}

// NewTicketService creates a new TicketService
func NewTicketService(client *ent.Client) *TicketService {
	return &TicketService{client: client}
}

// CreateTicket opens a new escalation ticket in pending state.
func (s *TicketService) CreateTicket(httpCtx context.Context, req models.CreateTicketRequest) (*ent.Ticket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if req.StudentID == "" {
		return nil, NewValidationError("student_id", "student id is required")
	}
	if req.Reason == "" {
		return nil, NewValidationError("reason", "reason is required")
	}

	builder := s.client.Ticket.Create().
		SetID(uuid.New().String()).
		SetStudentID(req.StudentID).
		SetReason(req.Reason).
		SetCreatedAt(time.Now())

	if req.GuardianID != nil {
		builder = builder.SetGuardianID(*req.GuardianID)
	}
	if req.Category != "" {
		builder = builder.SetCategory(ticket.Category(req.Category))
	}
	if req.Priority != "" {
		builder = builder.SetPriority(ticket.Priority(req.Priority))
	}
	if req.Context != "" {
		builder = builder.SetContext(req.Context)
	}

	row, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return row, nil
}

// GetTicket retrieves one ticket by full id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*ent.Ticket, error) {
	row, err := s.client.Ticket.Get(ctx, ticketID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return row, nil
}

// FindTicket retrieves one ticket by full id or id prefix. Guardians only
// ever see the first 8 characters of the ticket id.
func (s *TicketService) FindTicket(ctx context.Context, idOrPrefix string) (*ent.Ticket, error) {
	if idOrPrefix == "" {
		return nil, NewValidationError("id", "ticket id is required")
	}
	row, err := s.client.Ticket.Query().
		Where(ticket.IDHasPrefix(idOrPrefix)).
		Order(ent.Desc(ticket.FieldCreatedAt)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return row, nil
}

// ListTickets retrieves tickets matching the filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter models.TicketFilter) ([]*ent.Ticket, error) {
	query := s.client.Ticket.Query()
	if filter.State != "" {
		query = query.Where(ticket.StateEQ(ticket.State(filter.State)))
	}
	if filter.Category != "" {
		query = query.Where(ticket.CategoryEQ(ticket.Category(filter.Category)))
	}
	if filter.Priority != "" {
		query = query.Where(ticket.PriorityEQ(ticket.Priority(filter.Priority)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := query.
		Order(ent.Desc(ticket.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return rows, nil
}

// RespondTicket stores the admin reply and resolves the ticket.
func (s *TicketService) RespondTicket(httpCtx context.Context, ticketID, reply string) (*ent.Ticket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if reply == "" {
		return nil, NewValidationError("reply", "reply is required")
	}

	row, err := s.client.Ticket.UpdateOneID(ticketID).
		SetAdminReply(reply).
		SetState(ticket.StateResolved).
		SetResolvedAt(time.Now()).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to respond ticket: %w", err)
	}
	return row, nil
}

// StartTicket transitions a pending ticket to in_progress.
func (s *TicketService) StartTicket(httpCtx context.Context, ticketID string) (*ent.Ticket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row, err := s.client.Ticket.UpdateOneID(ticketID).
		SetState(ticket.StateInProgress).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to start ticket: %w", err)
	}
	return row, nil
}
