package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/llm"
)

// stubQuerier returns scripted rows per cypher fragment.
type stubQuerier struct {
	rows   map[string][]map[string]interface{}
	writes []string
}

func (s *stubQuerier) Read(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	for fragment, rows := range s.rows {
		if strings.Contains(cypher, fragment) {
			return rows, nil
		}
	}
	return nil, nil
}

func (s *stubQuerier) Write(ctx context.Context, cypher string, params map[string]interface{}) error {
	s.writes = append(s.writes, cypher)
	return nil
}

// stubLLM answers every completion with fixed content.
type stubLLM struct {
	content string
}

func (s *stubLLM) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return &llm.Response{Content: s.content, HasUsage: true}, nil
}

func (s *stubLLM) Provider() string { return "openai" }
func (s *stubLLM) Model() string    { return "test-model" }

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, "low", RiskLevelFor(0))
	assert.Equal(t, "low", RiskLevelFor(39))
	assert.Equal(t, "medium", RiskLevelFor(40))
	assert.Equal(t, "medium", RiskLevelFor(69))
	assert.Equal(t, "high", RiskLevelFor(70))
	assert.Equal(t, "high", RiskLevelFor(120))
}

func TestComputeProjection(t *testing.T) {
	inputs := []ProjectionInput{
		{Amount: 10000, Profile: "punctual"},
		{Amount: 10000, Profile: "delinquent"},
		{Amount: 10000, Profile: ""},
	}
	projection := ComputeProjection(inputs)

	assert.Equal(t, 3, projection.InstallmentsCounted)
	assert.Equal(t, 30000.0, projection.TotalPending)
	// 10000*0.85 + 10000*0.25 + 10000*0.40
	assert.Equal(t, 15000.0, projection.ExpectedRealistic)
	assert.Equal(t, 21000.0, projection.ExpectedOptimistic)
	assert.Equal(t, 10500.0, projection.ExpectedPessimistic)

	require.Contains(t, projection.ByProfile, "unclassified")
	assert.Equal(t, 1, projection.ByProfile["unclassified"].Count)
	assert.Equal(t, 4000.0, projection.ByProfile["unclassified"].Expected)
}

func TestComputeProjectionEmpty(t *testing.T) {
	projection := ComputeProjection(nil)
	assert.Equal(t, 0, projection.InstallmentsCounted)
	assert.Equal(t, 0.0, projection.TotalPending)
}

func TestParseClassification(t *testing.T) {
	t.Run("valid json", func(t *testing.T) {
		out, err := parseClassification(`{"profile":"occasional","risk_level":"medium","reason":"paga con demora","patterns":["paga tras recordatorio"]}`)
		require.NoError(t, err)
		assert.Equal(t, "occasional", out.Profile)
		assert.Equal(t, "medium", out.RiskLevel)
		assert.Equal(t, []string{"paga tras recordatorio"}, out.Patterns)
	})

	t.Run("fenced and uppercased", func(t *testing.T) {
		out, err := parseClassification("```json\n{\"profile\":\"PUNCTUAL\",\"risk_level\":\"LOW\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "punctual", out.Profile)
		assert.Equal(t, "low", out.RiskLevel)
	})

	t.Run("unknown profile is rejected", func(t *testing.T) {
		_, err := parseClassification(`{"profile":"whale","risk_level":"low"}`)
		assert.Error(t, err)
	})

	t.Run("unknown risk level falls back to medium", func(t *testing.T) {
		out, err := parseClassification(`{"profile":"new","risk_level":"extreme"}`)
		require.NoError(t, err)
		assert.Equal(t, "medium", out.RiskLevel)
	})
}

func TestLatenessDays(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, latenessDays(due.AddDate(0, 0, 5), due))
	assert.Equal(t, 0, latenessDays(due, due))
	assert.Equal(t, 0, latenessDays(due.AddDate(0, 0, -3), due))
}

func TestDesertionRiskReport(t *testing.T) {
	q := &stubQuerier{rows: map[string][]map[string]interface{}{
		"OWES": {
			{
				"student_id": "A-003", "student_name": "Lucas López", "grade": "3A",
				"guardian_id": "G-002", "guardian_name": "Carlos López",
				"guardian_phone": "+5491112345002",
				"payer_profile":  "delinquent",
				"patterns":       []interface{}{"ignora recordatorios"},
				"overdue_count":  int64(2), "overdue_amount": 90000.0,
				"ignored": int64(1), "tickets": int64(0),
				"sibling_overdue": int64(0), "score": int64(85),
			},
		},
	}}

	rows, err := NewReports(q, nil).DesertionRisk(context.Background(), 40)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A-003", rows[0].StudentID)
	assert.Equal(t, 85, rows[0].Score)
	assert.Equal(t, "high", rows[0].RiskLevel)
	assert.Equal(t, []string{"ignora recordatorios"}, rows[0].Patterns)
}

func TestExecutiveSummary(t *testing.T) {
	q := &stubQuerier{}
	client := &stubLLM{content: `{"trends":["mora estable"],"risks":["3 familias en mora"],"opportunities":["planes de pago"],"actions":["contactar riesgo alto"]}`}

	summary, err := NewReports(q, client).ExecutiveSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mora estable"}, summary.Trends)
	assert.Equal(t, []string{"contactar riesgo alto"}, summary.Actions)
	assert.Equal(t, "openai", summary.GeneratedBy)
}

func TestReportEndpoints(t *testing.T) {
	q := &stubQuerier{rows: map[string][]map[string]interface{}{
		"BehaviorCluster": {
			{"name": "punctual", "members": int64(3)},
			{"name": "delinquent", "members": int64(1)},
		},
	}}
	reports := NewReports(q, &stubLLM{content: `{"trends":[],"risks":[],"opportunities":[],"actions":[]}`})
	server := NewServer(&config.GraphConfig{Port: "0"}, nil, reports, nil, nil)
	httpSrv := httptest.NewServer(server.Handler())
	defer httpSrv.Close()

	t.Run("clusters", func(t *testing.T) {
		resp, err := http.Get(httpSrv.URL + "/api/v1/reports/clusters")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body struct {
			Clusters []ClusterRow `json:"clusters"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Clusters, 2)
		assert.Equal(t, "punctual", body.Clusters[0].Name)
		assert.Equal(t, 3, body.Clusters[0].Members)
	})

	t.Run("bad threshold is rejected", func(t *testing.T) {
		resp, err := http.Get(httpSrv.URL + "/api/v1/reports/desertion-risk?threshold=200")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad days is rejected", func(t *testing.T) {
		resp, err := http.Get(httpSrv.URL + "/api/v1/reports/cash-projection?days=3")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("etl not configured", func(t *testing.T) {
		resp, err := http.Post(httpSrv.URL+"/api/v1/etl/run", "application/json", nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("health without store", func(t *testing.T) {
		resp, err := http.Get(httpSrv.URL + "/health")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "not configured", body["neo4j"])
	})
}
