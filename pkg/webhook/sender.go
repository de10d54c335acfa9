// Package webhook delivers outbound events to a configured endpoint with
// exponential-backoff retries. Deliveries are fire-and-forget from the
// caller's perspective: enqueueing never blocks on the network.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/colegio-digital/gestor/pkg/models"
)

const attemptTimeout = 10 * time.Second

// Sender posts webhook events with retry. Safe for concurrent use.
// Each event type maps to a path under baseURL: payment_confirmed is
// delivered to <baseURL>/webhook/erp/payment-confirmed, and so on.
type Sender struct {
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
	http       *http.Client

	wg sync.WaitGroup
}

// NewSender creates a sender delivering to the given receiver base URL.
func NewSender(baseURL string, maxRetries int, baseDelay time.Duration) *Sender {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Sender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		http:       &http.Client{Timeout: attemptTimeout},
	}
}

func (s *Sender) targetFor(event models.WebhookEvent) string {
	return s.baseURL + "/webhook/erp/" + strings.ReplaceAll(event.Type, "_", "-")
}

// NewPaymentConfirmed builds the payment_confirmed event envelope.
func NewPaymentConfirmed(data models.PaymentConfirmedData) models.WebhookEvent {
	return models.WebhookEvent{
		Type:      "payment_confirmed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: map[string]interface{}{
			"installment_id": data.InstallmentID,
			"student_id":     data.StudentID,
			"amount":         data.Amount,
			"paid_at":        data.PaidAt,
		},
	}
}

// Enqueue schedules a delivery in the background and returns immediately.
// Exhausted retries are logged, never surfaced to the caller.
func (s *Sender) Enqueue(event models.WebhookEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Deliver(context.Background(), event); err != nil {
			slog.Error("Webhook delivery abandoned",
				"type", event.Type,
				"target", s.targetFor(event),
				"error", err)
		}
	}()
}

// Wait blocks until all enqueued deliveries have finished. Used during
// graceful shutdown and in tests.
func (s *Sender) Wait() {
	s.wg.Wait()
}

// Deliver posts the event synchronously, retrying with exponential backoff.
// Delay before retry n is baseDelay doubled n times.
func (s *Sender) Deliver(ctx context.Context, event models.WebhookEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Hour
	policy.MaxElapsedTime = 0

	target := s.targetFor(event)
	attempt := 0
	operation := func() error {
		attempt++
		if err := s.post(ctx, target, body); err != nil {
			slog.Warn("Webhook attempt failed",
				"type", event.Type,
				"attempt", attempt,
				"max_retries", s.maxRetries,
				"error", err)
			return err
		}
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxRetries-1)), ctx))
	if err != nil {
		return fmt.Errorf("failed after %d attempts: %w", attempt, err)
	}

	slog.Info("Webhook delivered",
		"type", event.Type,
		"target", target,
		"attempts", attempt)
	return nil
}

func (s *Sender) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Source", "erp")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
