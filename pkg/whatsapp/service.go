// Package whatsapp handles outbound message delivery through the WhatsApp
// Cloud API, with a simulation mode for local development.
package whatsapp

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/colegio-digital/gestor/pkg/config"
)

// SendResult reports the outcome of one outbound send.
type SendResult struct {
	MessageID string `json:"message_id"`
	Simulated bool   `json:"simulated"`
}

// Service handles outbound WhatsApp delivery.
// Nil-safe: all methods are no-ops when service is nil.
// A token prefixed "dummy" switches the service to simulation mode:
// sends are logged and acknowledged with a synthetic sim_<uuid> id
// without touching the network.
type Service struct {
	client   *Client
	simulate bool
	logger   *slog.Logger
}

// NewService creates a new WhatsApp service.
// Returns nil if Token is empty.
func NewService(cfg config.WhatsAppConfig) *Service {
	if cfg.Token == "" {
		return nil
	}
	s := &Service{
		simulate: strings.HasPrefix(cfg.Token, "dummy"),
		logger:   slog.Default().With("component", "whatsapp-service"),
	}
	if !s.simulate {
		s.client = NewClient(cfg.BaseURL, cfg.Token, cfg.PhoneNumberID)
	}
	return s
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "whatsapp-service"),
	}
}

// SendText delivers a text message, or simulates delivery in dummy mode.
func (s *Service) SendText(ctx context.Context, phone, text string) (SendResult, error) {
	if s == nil {
		return SendResult{}, nil
	}

	if s.simulate {
		id := "sim_" + uuid.New().String()
		s.logger.Info("Simulated WhatsApp send",
			"phone", phone,
			"message_id", id,
			"chars", len(text))
		return SendResult{MessageID: id, Simulated: true}, nil
	}

	id, err := s.client.SendText(ctx, phone, text)
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{MessageID: id}, nil
}

// Notify sends a message fail-open: errors are logged, never returned.
// Used by background notification jobs where delivery is best-effort.
func (s *Service) Notify(ctx context.Context, phone, text string) SendResult {
	if s == nil {
		return SendResult{}
	}
	result, err := s.SendText(ctx, phone, text)
	if err != nil {
		s.logger.Error("Failed to send WhatsApp notification",
			"phone", phone,
			"error", err)
	}
	return result
}

// Simulated reports whether the service is running in simulation mode.
func (s *Service) Simulated() bool {
	return s != nil && s.simulate
}
