package erp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/pkg/models"
)

func TestGetGuardianByHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/guardians/by-handle/+5491112345001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "G-001", "name": "Maria Garcia", "phone": "+5491112345001",
			"relation": "mother",
			"students": [{"id": "A-001", "name": "Juan Garcia", "grade": "3A", "active": true}]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	guardian, err := client.GetGuardianByHandle(context.Background(), "+5491112345001")
	require.NoError(t, err)
	require.NotNil(t, guardian)
	assert.Equal(t, "G-001", guardian.ID)
	require.Len(t, guardian.Students, 1)
	assert.Equal(t, "Juan Garcia", guardian.Students[0].Name)
}

func TestNotFoundMapsToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	guardian, err := client.GetGuardianByHandle(context.Background(), "+000")
	require.NoError(t, err)
	assert.Nil(t, guardian)

	student, err := client.GetStudent(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, student)

	installment, err := client.GetInstallment(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, installment)
}

func TestServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetStudent(context.Background(), "A-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestConfirmPaymentAlreadyPaid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"already paid"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ConfirmPayment(context.Background(), models.ConfirmPaymentRequest{
		InstallmentID: "C-A001-03",
		Amount:        50000,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyPaid))
}

func TestConfirmPaymentHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true, "message": "payment registered",
			"payment": {"id": "PAY-1A2B3C4D", "installment_id": "C-A001-03", "amount": 50000},
			"installment": {"id": "C-A001-03", "student_id": "A-001", "plan_id": "P-2026",
			                "sequence": 3, "amount": 50000, "due_date": "2026-03-10", "state": "paid"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.ConfirmPayment(context.Background(), models.ConfirmPaymentRequest{
		InstallmentID: "C-A001-03",
		Amount:        50000,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Regexp(t, `^PAY-[A-F0-9]{8}$`, resp.Payment.ID)
	assert.Equal(t, "paid", resp.Installment.State)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	assert.True(t, client.HealthCheck(context.Background()))

	srv.Close()
	assert.False(t, client.HealthCheck(context.Background()))
}
