package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NotifToolConfig wires the notification tools against the orchestrator's
// internal notification API.
type NotifToolConfig struct {
	OrchestratorURL string
	HTTP            *http.Client
}

func (cfg NotifToolConfig) httpClient() *http.Client {
	if cfg.HTTP != nil {
		return cfg.HTTP
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// RegisterNotifTools registers the notif category tools.
func RegisterNotifTools(r *Registry, cfg NotifToolConfig) {
	r.MustRegister(&Tool{
		Name:        "enviar_whatsapp",
		Description: "Envía un mensaje de WhatsApp a un teléfono.",
		Category:    CategoryNotif,
		MockResponse: map[string]interface{}{
			"sent": true, "simulated": true, "message_id": "sim_mock",
		},
		Params: []ParamSpec{
			{Name: "telefono", Type: "string", Description: "Teléfono destino"},
			{Name: "mensaje", Type: "string", Description: "Texto del mensaje"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return cfg.postJSON(ctx, "/api/v1/notifications/send", map[string]interface{}{
				"phone":   args["telefono"],
				"message": args["mensaje"],
			})
		},
	})

	r.MustRegister(&Tool{
		Name:        "registrar_notificacion",
		Description: "Registra el envío de una notificación para deduplicación.",
		Category:    CategoryNotif,
		MockResponse: map[string]interface{}{
			"registered": true, "duplicate": false,
		},
		Params: []ParamSpec{
			{Name: "cuota_id", Type: "string", Description: "Cuota asociada"},
			{Name: "telefono", Type: "string", Description: "Teléfono destino"},
			{Name: "tipo", Type: "string", Description: "reminder_d7, reminder_d3, reminder_d1 o payment_confirmation"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return cfg.postJSON(ctx, "/api/v1/notifications/register", map[string]interface{}{
				"installment_id": args["cuota_id"],
				"phone":          args["telefono"],
				"kind":           args["tipo"],
			})
		},
	})

	r.MustRegister(&Tool{
		Name:        "enviar_recordatorios_masivos",
		Description: "Dispara el envío de recordatorios de vencimiento para la ventana indicada.",
		Category:    CategoryNotif,
		MockResponse: map[string]interface{}{
			"queued": true, "window_days": 7,
		},
		Params: []ParamSpec{
			{Name: "dias", Type: "integer", Description: "Ventana en días", Default: 7},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return cfg.postJSON(ctx, "/api/v1/notifications/reminders", map[string]interface{}{
				"days": args["dias"],
			})
		},
	})
}

func (cfg NotifToolConfig) postJSON(ctx context.Context, path string, payload map[string]interface{}) (interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.OrchestratorURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("post %s: unexpected status %d: %s", path, resp.StatusCode, raw)
	}
	var out interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
