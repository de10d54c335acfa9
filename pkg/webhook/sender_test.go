package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/pkg/models"
)

func paymentEvent() models.WebhookEvent {
	return NewPaymentConfirmed(models.PaymentConfirmedData{
		InstallmentID: "C-A001-03",
		StudentID:     "A001",
		Amount:        50000,
		PaidAt:        "2026-03-10T12:00:00Z",
	})
}

func TestDeliverFirstAttemptSuccess(t *testing.T) {
	var attempts atomic.Int32
	var gotPath, gotSource string
	var gotEvent models.WebhookEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		gotPath = r.URL.Path
		gotSource = r.Header.Get("X-Webhook-Source")
		_ = json.NewDecoder(r.Body).Decode(&gotEvent)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSender(srv.URL, 3, 10*time.Millisecond)
	require.NoError(t, sender.Deliver(context.Background(), paymentEvent()))

	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, "/webhook/erp/payment-confirmed", gotPath)
	assert.Equal(t, "erp", gotSource)
	assert.Equal(t, "payment_confirmed", gotEvent.Type)
	assert.Equal(t, "C-A001-03", gotEvent.Data["installment_id"])
}

func TestDeliverAcceptsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSender(srv.URL, 3, 10*time.Millisecond)
	require.NoError(t, sender.Deliver(context.Background(), paymentEvent()))
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewSender(srv.URL, 3, 5*time.Millisecond)
	require.NoError(t, sender.Deliver(context.Background(), paymentEvent()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDeliverExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := 20 * time.Millisecond
	sender := NewSender(srv.URL, 3, base)

	start := time.Now()
	err := sender.Deliver(context.Background(), paymentEvent())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, int32(3), attempts.Load())

	// Delays of base and 2*base must have elapsed between the attempts.
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestEnqueueDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSender(srv.URL, 1, time.Millisecond)

	start := time.Now()
	sender.Enqueue(paymentEvent())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	sender.Wait()
}

func TestDeliverConnectionErrorRetries(t *testing.T) {
	sender := NewSender("http://127.0.0.1:1", 2, time.Millisecond)
	err := sender.Deliver(context.Background(), paymentEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}
