// Package erpserver implements the school ERP REST service: student,
// guardian and installment lookups plus payment confirmation with an
// outbound webhook to the orchestrator.
package erpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/guardian"
	"github.com/colegio-digital/gestor/ent/installment"
	"github.com/colegio-digital/gestor/ent/student"
	"github.com/colegio-digital/gestor/pkg/models"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyPaid is returned when confirming a payment against an
// installment that is already paid.
var ErrAlreadyPaid = errors.New("installment already paid")

// Store wraps the authoritative ERP tables.
type Store struct {
	client *ent.Client
}

// NewStore creates a new Store.
func NewStore(client *ent.Client) *Store {
	return &Store{client: client}
}

// StudentFilter narrows ListStudents.
type StudentFilter struct {
	Grade  string
	Name   string
	Active *bool
}

// InstallmentFilter narrows ListInstallments.
type InstallmentFilter struct {
	State   string
	DueFrom *time.Time
	DueTo   *time.Time
	Limit   int
}

// NormalizeHandle strips spaces and hyphens from a messaging handle so
// "+54 9 11 1234-5001" and "+5491112345001" match the same guardian.
func NormalizeHandle(handle string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(handle)
}

// Student fetches one student with its guardians embedded.
func (s *Store) Student(ctx context.Context, id string) (*ent.Student, []*ent.Guardian, error) {
	row, err := s.client.Student.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get student: %w", err)
	}
	guardians, err := row.QueryGuardians().Order(ent.Asc(guardian.FieldID)).All(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load student guardians: %w", err)
	}
	return row, guardians, nil
}

// ListStudents lists students matching the filter, ordered by id.
func (s *Store) ListStudents(ctx context.Context, filter StudentFilter) ([]*ent.Student, error) {
	query := s.client.Student.Query()
	if filter.Grade != "" {
		query = query.Where(student.GradeEQ(filter.Grade))
	}
	if filter.Name != "" {
		query = query.Where(student.NameContainsFold(filter.Name))
	}
	if filter.Active != nil {
		query = query.Where(student.ActiveEQ(*filter.Active))
	}
	rows, err := query.Order(ent.Asc(student.FieldID)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return rows, nil
}

// StudentInstallments lists a student's installments ordered by sequence,
// optionally filtered by state. The student must exist.
func (s *Store) StudentInstallments(ctx context.Context, studentID, state string) ([]*ent.Installment, error) {
	exists, err := s.client.Student.Query().Where(student.IDEQ(studentID)).Exist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check student: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	query := s.client.Installment.Query().
		Where(installment.StudentIDEQ(studentID))
	if state != "" {
		query = query.Where(installment.StateEQ(installment.State(state)))
	}
	rows, err := query.Order(ent.Asc(installment.FieldSequence)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list student installments: %w", err)
	}
	return rows, nil
}

// GuardianByHandle finds a guardian by normalized messaging handle, with
// its students embedded.
func (s *Store) GuardianByHandle(ctx context.Context, handle string) (*ent.Guardian, []*ent.Student, error) {
	row, err := s.client.Guardian.Query().
		Where(guardian.PhoneEQ(NormalizeHandle(handle))).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to find guardian by handle: %w", err)
	}
	return s.withStudents(ctx, row)
}

// GuardianByID fetches one guardian with its students embedded.
func (s *Store) GuardianByID(ctx context.Context, id string) (*ent.Guardian, []*ent.Student, error) {
	row, err := s.client.Guardian.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get guardian: %w", err)
	}
	return s.withStudents(ctx, row)
}

func (s *Store) withStudents(ctx context.Context, row *ent.Guardian) (*ent.Guardian, []*ent.Student, error) {
	students, err := row.QueryStudents().Order(ent.Asc(student.FieldID)).All(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load guardian students: %w", err)
	}
	return row, students, nil
}

// Installment fetches one installment with its student embedded.
func (s *Store) Installment(ctx context.Context, id string) (*ent.Installment, *ent.Student, error) {
	row, err := s.client.Installment.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get installment: %w", err)
	}
	owner, err := row.QueryStudent().Only(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load installment student: %w", err)
	}
	return row, owner, nil
}

// ListInstallments lists installments matching the filter, ordered by due
// date. Limit defaults to 100 and caps at 500.
func (s *Store) ListInstallments(ctx context.Context, filter InstallmentFilter) ([]*ent.Installment, error) {
	query := s.client.Installment.Query()
	if filter.State != "" {
		query = query.Where(installment.StateEQ(installment.State(filter.State)))
	}
	if filter.DueFrom != nil {
		query = query.Where(installment.DueDateGTE(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		query = query.Where(installment.DueDateLTE(*filter.DueTo))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := query.
		Order(ent.Asc(installment.FieldDueDate)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	return rows, nil
}

// ConfirmPayment records a payment against a pending or overdue
// installment and transitions it to paid. The payment row and the state
// change commit atomically.
func (s *Store) ConfirmPayment(ctx context.Context, req models.ConfirmPaymentRequest) (*ent.Payment, *ent.Installment, error) {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := tx.Installment.Get(ctx, req.InstallmentID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get installment: %w", err)
	}
	if row.State == installment.StatePaid {
		return nil, row, ErrAlreadyPaid
	}

	method := req.Method
	if method == "" {
		method = "transfer"
	}
	paidAt := time.Now().UTC()

	create := tx.Payment.Create().
		SetID(NewPaymentID()).
		SetInstallmentID(row.ID).
		SetAmount(req.Amount).
		SetPaidAt(paidAt).
		SetMethod(method)
	if req.Reference != "" {
		create = create.SetReference(req.Reference)
	}
	payment, err := create.Save(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create payment: %w", err)
	}

	updated, err := tx.Installment.UpdateOneID(row.ID).
		SetState(installment.StatePaid).
		SetPaidAt(paidAt).
		Save(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark installment paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return payment, updated, nil
}

// MarkOverdue flips pending installments whose due date has passed to
// overdue. Returns the number of rows changed.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	n, err := s.client.Installment.Update().
		Where(
			installment.StateEQ(installment.StatePending),
			installment.DueDateLT(now),
		).
		SetState(installment.StateOverdue).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue installments: %w", err)
	}
	return n, nil
}

// NewPaymentID generates a payment id of the form PAY-<8 uppercase hex>.
func NewPaymentID() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
