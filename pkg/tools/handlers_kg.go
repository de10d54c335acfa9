package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// KGToolConfig wires the knowledge-graph tools against the analytics
// service.
type KGToolConfig struct {
	GraphURL string
	HTTP     *http.Client
}

func (cfg KGToolConfig) httpClient() *http.Client {
	if cfg.HTTP != nil {
		return cfg.HTTP
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// RegisterKGTools registers the kg category tools. Both carry mock
// responses so mock mode never reaches the analytics service.
func RegisterKGTools(r *Registry, cfg KGToolConfig) {
	r.MustRegister(&Tool{
		Name:         "analizar_patrones_pago",
		Description:  "Analiza los patrones de pago históricos de un responsable.",
		Category:     CategoryKG,
		MockResponse: mockPaymentPatterns(),
		Params: []ParamSpec{
			{Name: "responsable_id", Type: "string", Description: "Id del responsable"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id, _ := args["responsable_id"].(string)
			return cfg.getReport(ctx, "/api/v1/reports/payment-patterns", url.Values{"guardian_id": {id}})
		},
	})

	r.MustRegister(&Tool{
		Name:         "calcular_riesgo_desercion",
		Description:  "Calcula el riesgo de deserción de un alumno según su historial.",
		Category:     CategoryKG,
		MockResponse: mockDesertionRisk(),
		Params: []ParamSpec{
			{Name: "alumno_id", Type: "string", Description: "Id del alumno"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id, _ := args["alumno_id"].(string)
			return cfg.getReport(ctx, "/api/v1/reports/desertion-risk", url.Values{"student_id": {id}})
		},
	})
}

func (cfg KGToolConfig) getReport(ctx context.Context, path string, query url.Values) (interface{}, error) {
	target := cfg.GraphURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	resp, err := cfg.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("get %s: unexpected status %d: %s", path, resp.StatusCode, payload)
	}
	var out interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return out, nil
}
