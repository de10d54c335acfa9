package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/ent/notificationsent"
	testdb "github.com/colegio-digital/gestor/test/database"
)

func TestNotificationService_RecordNotification(t *testing.T) {
	client := testdb.NewTestClient(t)
	notifications := NewNotificationService(client.Client)
	ctx := context.Background()

	t.Run("first send is recorded", func(t *testing.T) {
		row, created, err := notifications.RecordNotification(ctx, "C-A001-03", "+5491112345001", "reminder_d7")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, notificationsent.KindReminderD7, row.Kind)
	})

	t.Run("same kind again is a silent duplicate", func(t *testing.T) {
		row, created, err := notifications.RecordNotification(ctx, "C-A001-03", "+5491112345001", "reminder_d7")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Nil(t, row)

		count, err := client.NotificationSent.Query().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("different kind for same installment is allowed", func(t *testing.T) {
		_, created, err := notifications.RecordNotification(ctx, "C-A001-03", "+5491112345001", "reminder_d1")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("validates input", func(t *testing.T) {
		_, _, err := notifications.RecordNotification(ctx, "", "+549111", "reminder_d7")
		assert.True(t, IsValidationError(err))
	})
}

func TestNotificationService_AlreadySent(t *testing.T) {
	client := testdb.NewTestClient(t)
	notifications := NewNotificationService(client.Client)
	ctx := context.Background()

	_, _, err := notifications.RecordNotification(ctx, "C-A001-03", "+5491112345001", "payment_confirmation")
	require.NoError(t, err)

	sent, err := notifications.AlreadySent(ctx, "C-A001-03", "payment_confirmation")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = notifications.AlreadySent(ctx, "C-A001-03", "reminder_d3")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestNotificationService_MarkRead(t *testing.T) {
	client := testdb.NewTestClient(t)
	notifications := NewNotificationService(client.Client)
	ctx := context.Background()

	row, _, err := notifications.RecordNotification(ctx, "C-A001-03", "+5491112345001", "reminder_d3")
	require.NoError(t, err)
	assert.False(t, row.Read)

	require.NoError(t, notifications.MarkRead(ctx, row.ID))

	reloaded, err := client.NotificationSent.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Read)

	assert.ErrorIs(t, notifications.MarkRead(ctx, "missing"), ErrNotFound)
}
