package services

import (
	"context"
	"fmt"
	"time"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/notificationsent"
	"github.com/google/uuid"
)

// NotificationService records outbound notifications with at-most-once
// semantics per (installment, kind), enforced by the unique index.
type NotificationService struct {
	client *ent.Client
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(client *ent.Client) *NotificationService {
	return &NotificationService{client: client}
}

// RecordNotification registers one notification send. Returns created=false
// when a notification of the same kind already exists for the installment,
// so callers skip the duplicate send instead of failing.
func (s *NotificationService) RecordNotification(httpCtx context.Context, installmentID, phone, kind string) (*ent.NotificationSent, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if installmentID == "" {
		return nil, false, NewValidationError("installment_id", "installment id is required")
	}
	if phone == "" {
		return nil, false, NewValidationError("phone", "phone is required")
	}

	row, err := s.client.NotificationSent.Create().
		SetID(uuid.New().String()).
		SetInstallmentID(installmentID).
		SetPhone(phone).
		SetKind(notificationsent.Kind(kind)).
		SetSentAt(time.Now()).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to record notification: %w", err)
	}
	return row, true, nil
}

// AlreadySent reports whether a notification of the given kind was already
// recorded for the installment.
func (s *NotificationService) AlreadySent(ctx context.Context, installmentID, kind string) (bool, error) {
	exists, err := s.client.NotificationSent.Query().
		Where(
			notificationsent.InstallmentIDEQ(installmentID),
			notificationsent.KindEQ(notificationsent.Kind(kind)),
		).
		Exist(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return exists, nil
}

// ListByPhone retrieves the notifications sent to a handle, newest first.
func (s *NotificationService) ListByPhone(ctx context.Context, phone string, limit int) ([]*ent.NotificationSent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.client.NotificationSent.Query().
		Where(notificationsent.PhoneEQ(phone)).
		Order(ent.Desc(notificationsent.FieldSentAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(httpCtx context.Context, notificationID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.client.NotificationSent.UpdateOneID(notificationID).
		SetRead(true).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
