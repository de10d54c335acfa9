package whatsapp

import (
	"encoding/json"
	"fmt"

	"github.com/colegio-digital/gestor/pkg/models"
)

// nativePayload mirrors the Cloud API webhook envelope down to the fields
// the agent pipeline needs.
type nativePayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseInbound flattens an inbound webhook body to the simplified message
// shape. It accepts either the simplified shape directly or the provider's
// native entry/changes/value envelope.
func ParseInbound(raw []byte) (models.InboundMessage, error) {
	var simple models.InboundMessage
	if err := json.Unmarshal(raw, &simple); err == nil &&
		simple.FromNumber != "" && simple.Text != "" {
		return simple, nil
	}

	var native nativePayload
	if err := json.Unmarshal(raw, &native); err != nil {
		return models.InboundMessage{}, fmt.Errorf("parse inbound payload: %w", err)
	}

	for _, entry := range native.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "" && msg.Type != "text" {
					continue
				}
				if msg.From == "" || msg.Text.Body == "" {
					continue
				}
				return models.InboundMessage{
					FromNumber: msg.From,
					Text:       msg.Text.Body,
					MessageID:  msg.ID,
					Timestamp:  msg.Timestamp,
				}, nil
			}
		}
	}
	return models.InboundMessage{}, fmt.Errorf("no text message in inbound payload")
}
