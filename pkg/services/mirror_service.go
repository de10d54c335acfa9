package services

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/guardianmirror"
	"github.com/colegio-digital/gestor/ent/installmentmirror"
	"github.com/colegio-digital/gestor/ent/studentmirror"
	"github.com/colegio-digital/gestor/pkg/models"
)

// MirrorService maintains the orchestrator-side replica of ERP entities.
// Rows are keyed by the ERP stable id and written only on webhook receipt;
// reads feed the agent's user context and the reminder batch.
type MirrorService struct {
	client *ent.Client
}

// NewMirrorService creates a new MirrorService
func NewMirrorService(client *ent.Client) *MirrorService {
	return &MirrorService{client: client}
}

// UpsertGuardian creates or refreshes one guardian mirror row.
func (s *MirrorService) UpsertGuardian(httpCtx context.Context, data models.GuardianUpdatedData) (*ent.GuardianMirror, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if data.ID == "" {
		return nil, NewValidationError("id", "guardian id is required")
	}

	update := s.client.GuardianMirror.UpdateOneID(data.ID).
		SetName(data.Name).
		SetPhone(data.Phone).
		SetStudents(data.StudentIDs)
	if data.Email != "" {
		update = update.SetEmail(data.Email)
	}
	if data.Relation != "" {
		update = update.SetRelation(data.Relation)
	}

	mirror, err := update.Save(ctx)
	if err == nil {
		return mirror, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("failed to update guardian mirror: %w", err)
	}

	create := s.client.GuardianMirror.Create().
		SetID(data.ID).
		SetName(data.Name).
		SetPhone(data.Phone).
		SetStudents(data.StudentIDs)
	if data.Email != "" {
		create = create.SetEmail(data.Email)
	}
	if data.Relation != "" {
		create = create.SetRelation(data.Relation)
	}

	mirror, err = create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create guardian mirror: %w", err)
	}
	return mirror, nil
}

// UpsertStudent creates or refreshes one student mirror row.
func (s *MirrorService) UpsertStudent(httpCtx context.Context, data models.StudentUpdatedData) (*ent.StudentMirror, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if data.ID == "" {
		return nil, NewValidationError("id", "student id is required")
	}

	mirror, err := s.client.StudentMirror.UpdateOneID(data.ID).
		SetName(data.Name).
		SetGrade(data.Grade).
		SetActive(data.Active).
		Save(ctx)
	if err == nil {
		return mirror, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("failed to update student mirror: %w", err)
	}

	mirror, err = s.client.StudentMirror.Create().
		SetID(data.ID).
		SetName(data.Name).
		SetGrade(data.Grade).
		SetActive(data.Active).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create student mirror: %w", err)
	}
	return mirror, nil
}

// UpsertInstallment creates or refreshes one installment mirror row.
func (s *MirrorService) UpsertInstallment(httpCtx context.Context, data models.InstallmentGeneratedData) (*ent.InstallmentMirror, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if data.ID == "" {
		return nil, NewValidationError("id", "installment id is required")
	}
	dueDate, err := time.Parse("2006-01-02", data.DueDate)
	if err != nil {
		return nil, NewValidationError("due_date", "expected ISO date YYYY-MM-DD")
	}
	state := data.State
	if state == "" {
		state = "pending"
	}

	update := s.client.InstallmentMirror.UpdateOneID(data.ID).
		SetStudentID(data.StudentID).
		SetSequence(data.Sequence).
		SetAmount(data.Amount).
		SetDueDate(dueDate).
		SetState(state)
	if data.PayLink != "" {
		update = update.SetPayLink(data.PayLink)
	}

	mirror, err := update.Save(ctx)
	if err == nil {
		return mirror, nil
	}
	if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("failed to update installment mirror: %w", err)
	}

	create := s.client.InstallmentMirror.Create().
		SetID(data.ID).
		SetStudentID(data.StudentID).
		SetSequence(data.Sequence).
		SetAmount(data.Amount).
		SetDueDate(dueDate).
		SetState(state)
	if data.PayLink != "" {
		create = create.SetPayLink(data.PayLink)
	}

	mirror, err = create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create installment mirror: %w", err)
	}
	return mirror, nil
}

// MarkInstallmentPaid transitions a mirrored installment to paid.
func (s *MirrorService) MarkInstallmentPaid(httpCtx context.Context, installmentID string, paidAt time.Time) (*ent.InstallmentMirror, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mirror, err := s.client.InstallmentMirror.UpdateOneID(installmentID).
		SetState("paid").
		SetPaidAt(paidAt).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark installment paid: %w", err)
	}
	return mirror, nil
}

// LoadUserContext resolves the guardian context for an inbound handle.
// Satisfies the agent runtime's context loader.
func (s *MirrorService) LoadUserContext(ctx context.Context, phone string) (*models.UserContext, error) {
	guardian, err := s.client.GuardianMirror.Query().
		Where(guardianmirror.PhoneEQ(phone)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load guardian mirror: %w", err)
	}

	userContext := &models.UserContext{
		GuardianID: guardian.ID,
		Name:       guardian.Name,
		Phone:      guardian.Phone,
	}
	if len(guardian.Students) == 0 {
		return userContext, nil
	}

	students, err := s.client.StudentMirror.Query().
		Where(studentmirror.IDIn(guardian.Students...)).
		Order(ent.Asc(studentmirror.FieldID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load student mirrors: %w", err)
	}
	for _, student := range students {
		userContext.Students = append(userContext.Students, models.StudentSummary{
			ID:    student.ID,
			Name:  student.Name,
			Grade: student.Grade,
		})
	}
	return userContext, nil
}

// Guardian retrieves one mirrored guardian by ERP id.
func (s *MirrorService) Guardian(ctx context.Context, guardianID string) (*ent.GuardianMirror, error) {
	guardian, err := s.client.GuardianMirror.Get(ctx, guardianID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get guardian mirror: %w", err)
	}
	return guardian, nil
}

// GuardianForStudent finds the mirrored guardian responsible for a student.
func (s *MirrorService) GuardianForStudent(ctx context.Context, studentID string) (*ent.GuardianMirror, error) {
	guardian, err := s.client.GuardianMirror.Query().
		Where(func(selector *sql.Selector) {
			selector.Where(sqljson.ValueContains(guardianmirror.FieldStudents, studentID))
		}).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guardian for student: %w", err)
	}
	return guardian, nil
}

// PendingInstallmentsDueBetween lists mirrored installments still pending
// with a due date inside [from, to). Feeds the reminder batch.
func (s *MirrorService) PendingInstallmentsDueBetween(ctx context.Context, from, to time.Time) ([]*ent.InstallmentMirror, error) {
	installments, err := s.client.InstallmentMirror.Query().
		Where(
			installmentmirror.StateEQ("pending"),
			installmentmirror.DueDateGTE(from),
			installmentmirror.DueDateLT(to),
		).
		Order(ent.Asc(installmentmirror.FieldDueDate)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending installments: %w", err)
	}
	return installments, nil
}
