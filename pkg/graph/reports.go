package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/llm"
)

// Reports runs the analytics queries behind /api/v1/reports.
type Reports struct {
	q   Querier
	llm llm.Client
}

// NewReports creates a Reports facade. The LLM client is only needed for
// the executive summary and may be nil otherwise.
func NewReports(q Querier, client llm.Client) *Reports {
	return &Reports{q: q, llm: client}
}

// RiskRow is one student in the desertion-risk report.
type RiskRow struct {
	StudentID        string   `json:"student_id"`
	StudentName      string   `json:"student_name"`
	Grade            string   `json:"grade"`
	GuardianID       string   `json:"guardian_id"`
	GuardianName     string   `json:"guardian_name"`
	GuardianPhone    string   `json:"guardian_phone"`
	PayerProfile     string   `json:"payer_profile,omitempty"`
	Patterns         []string `json:"patterns,omitempty"`
	OverdueCount     int      `json:"overdue_count"`
	OverdueAmount    float64  `json:"overdue_amount"`
	IgnoredReminders int      `json:"ignored_reminders"`
	Tickets          int      `json:"tickets"`
	SiblingOverdue   int      `json:"sibling_overdue"`
	Score            int      `json:"score"`
	RiskLevel        string   `json:"risk_level"`
}

// DesertionRisk scores every student with unpaid installments past due.
// Factors: 20 points per overdue installment, 15 per ignored reminder,
// 10 per sibling overdue installment, 5 per ticket, plus a 30/15 bonus
// for a high/medium risk guardian.
func (r *Reports) DesertionRisk(ctx context.Context, threshold int) ([]RiskRow, error) {
	rows, err := r.q.Read(ctx, `
		MATCH (s:Student)-[:OWES]->(c:Installment)
		WHERE c.state IN ['overdue', 'pending'] AND c.due_date < date()
		WITH s, count(c) AS overdue_count, sum(c.amount) AS overdue_amount
		MATCH (g:Guardian)-[:RESPONSIBLE_OF]->(s)
		OPTIONAL MATCH (g)-[ig:IGNORED_NOTIFICATION]->(:Installment)
		WITH s, g, overdue_count, overdue_amount, count(ig) AS ignored
		OPTIONAL MATCH (g)-[:CREATED_TICKET]->(t:Ticket)
		WITH s, g, overdue_count, overdue_amount, ignored, count(t) AS tickets
		OPTIONAL MATCH (g)-[:RESPONSIBLE_OF]->(sib:Student)
		WHERE sib <> s
		OPTIONAL MATCH (sib)-[:OWES]->(sc:Installment)
		WHERE sc.state = 'overdue'
		WITH s, g, overdue_count, overdue_amount, ignored, tickets,
		     count(sc) AS sibling_overdue
		WITH s, g, overdue_count, overdue_amount, ignored, tickets, sibling_overdue,
		     (overdue_count * 20) + (ignored * 15) + (sibling_overdue * 10) +
		     (tickets * 5) +
		     (CASE g.risk_level WHEN 'high' THEN 30 WHEN 'medium' THEN 15 ELSE 0 END)
		     AS score
		WHERE score >= $threshold
		RETURN s.erp_id AS student_id,
		       s.name AS student_name,
		       s.grade AS grade,
		       g.erp_id AS guardian_id,
		       g.name AS guardian_name,
		       g.phone AS guardian_phone,
		       g.payer_profile AS payer_profile,
		       g.patterns AS patterns,
		       overdue_count, overdue_amount, ignored, tickets,
		       sibling_overdue, score
		ORDER BY score DESC`,
		map[string]interface{}{"threshold": threshold})
	if err != nil {
		return nil, err
	}

	out := make([]RiskRow, 0, len(rows))
	for _, row := range rows {
		score := asInt(row["score"])
		out = append(out, RiskRow{
			StudentID:        asString(row["student_id"]),
			StudentName:      asString(row["student_name"]),
			Grade:            asString(row["grade"]),
			GuardianID:       asString(row["guardian_id"]),
			GuardianName:     asString(row["guardian_name"]),
			GuardianPhone:    asString(row["guardian_phone"]),
			PayerProfile:     asString(row["payer_profile"]),
			Patterns:         asStrings(row["patterns"]),
			OverdueCount:     asInt(row["overdue_count"]),
			OverdueAmount:    asFloat(row["overdue_amount"]),
			IgnoredReminders: asInt(row["ignored"]),
			Tickets:          asInt(row["tickets"]),
			SiblingOverdue:   asInt(row["sibling_overdue"]),
			Score:            score,
			RiskLevel:        RiskLevelFor(score),
		})
	}
	return out, nil
}

// RiskLevelFor maps a risk score to its level band.
func RiskLevelFor(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// collectionProbability is the expected collection rate per payer profile
// under optimistic, realistic and pessimistic assumptions.
type collectionProbability struct {
	Optimistic  float64
	Realistic   float64
	Pessimistic float64
}

var collectionRates = map[string]collectionProbability{
	"punctual":   {Optimistic: 0.95, Realistic: 0.85, Pessimistic: 0.75},
	"occasional": {Optimistic: 0.75, Realistic: 0.55, Pessimistic: 0.35},
	"delinquent": {Optimistic: 0.45, Realistic: 0.25, Pessimistic: 0.10},
	"new":        {Optimistic: 0.70, Realistic: 0.50, Pessimistic: 0.30},
	"":           {Optimistic: 0.60, Realistic: 0.40, Pessimistic: 0.20},
}

// ProjectionInput is one unpaid installment feeding the cash projection.
type ProjectionInput struct {
	Amount  float64
	Profile string
}

// ProfileBucket aggregates projection amounts for one payer profile.
type ProfileBucket struct {
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
	Expected float64 `json:"expected"`
}

// Projection is the cash-projection report payload.
type Projection struct {
	From                string                   `json:"from"`
	To                  string                   `json:"to"`
	Days                int                      `json:"days"`
	InstallmentsCounted int                      `json:"installments_counted"`
	TotalPending        float64                  `json:"total_pending"`
	ExpectedOptimistic  float64                  `json:"expected_optimistic"`
	ExpectedRealistic   float64                  `json:"expected_realistic"`
	ExpectedPessimistic float64                  `json:"expected_pessimistic"`
	ByProfile           map[string]ProfileBucket `json:"by_profile"`
}

// CashProjection estimates collections over the next days, weighting each
// unpaid installment by its guardian's payer profile.
func (r *Reports) CashProjection(ctx context.Context, days int) (*Projection, error) {
	limit := time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
	rows, err := r.q.Read(ctx, `
		MATCH (s:Student)-[:OWES]->(c:Installment)
		WHERE c.state IN ['pending', 'overdue'] AND c.due_date <= date($limit)
		MATCH (g:Guardian)-[:RESPONSIBLE_OF]->(s)
		RETURN c.amount AS amount, g.payer_profile AS profile`,
		map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, err
	}

	inputs := make([]ProjectionInput, 0, len(rows))
	for _, row := range rows {
		inputs = append(inputs, ProjectionInput{
			Amount:  asFloat(row["amount"]),
			Profile: asString(row["profile"]),
		})
	}

	projection := ComputeProjection(inputs)
	projection.From = time.Now().UTC().Format("2006-01-02")
	projection.To = limit
	projection.Days = days
	return projection, nil
}

// ComputeProjection folds unpaid installments into the projection using
// the per-profile collection rates.
func ComputeProjection(inputs []ProjectionInput) *Projection {
	projection := &Projection{
		InstallmentsCounted: len(inputs),
		ByProfile:           make(map[string]ProfileBucket),
	}

	for _, input := range inputs {
		rates, ok := collectionRates[input.Profile]
		if !ok {
			rates = collectionRates[""]
		}
		projection.TotalPending += input.Amount
		projection.ExpectedOptimistic += input.Amount * rates.Optimistic
		projection.ExpectedRealistic += input.Amount * rates.Realistic
		projection.ExpectedPessimistic += input.Amount * rates.Pessimistic

		key := input.Profile
		if key == "" {
			key = "unclassified"
		}
		bucket := projection.ByProfile[key]
		bucket.Count++
		bucket.Total += input.Amount
		bucket.Expected += input.Amount * rates.Realistic
		projection.ByProfile[key] = bucket
	}

	projection.TotalPending = round2(projection.TotalPending)
	projection.ExpectedOptimistic = round2(projection.ExpectedOptimistic)
	projection.ExpectedRealistic = round2(projection.ExpectedRealistic)
	projection.ExpectedPessimistic = round2(projection.ExpectedPessimistic)
	for key, bucket := range projection.ByProfile {
		bucket.Total = round2(bucket.Total)
		bucket.Expected = round2(bucket.Expected)
		projection.ByProfile[key] = bucket
	}
	return projection
}

// PatternRow is one guardian in the payment-patterns report.
type PatternRow struct {
	GuardianID   string   `json:"guardian_id"`
	GuardianName string   `json:"guardian_name"`
	PayerProfile string   `json:"payer_profile,omitempty"`
	RiskLevel    string   `json:"risk_level,omitempty"`
	Patterns     []string `json:"patterns,omitempty"`
	Payments     int      `json:"payments"`
	AvgLateness  float64  `json:"avg_lateness_days"`
	Ignored      int      `json:"ignored_reminders"`
}

// PaymentPatterns lists per-guardian payment behavior with the
// LLM-derived profile attached.
func (r *Reports) PaymentPatterns(ctx context.Context) ([]PatternRow, error) {
	rows, err := r.q.Read(ctx, `
		MATCH (g:Guardian)-[:RESPONSIBLE_OF]->(:Student)
		OPTIONAL MATCH (g)-[p:PAID]->(:Installment)
		OPTIONAL MATCH (g)-[ig:IGNORED_NOTIFICATION]->(:Installment)
		WITH g,
		     count(DISTINCT p) AS payments,
		     coalesce(avg(p.lateness_days), 0) AS avg_lateness,
		     count(DISTINCT ig) AS ignored
		RETURN g.erp_id AS guardian_id,
		       g.name AS guardian_name,
		       g.payer_profile AS payer_profile,
		       g.risk_level AS risk_level,
		       g.patterns AS patterns,
		       payments, avg_lateness, ignored
		ORDER BY avg_lateness DESC`, nil)
	if err != nil {
		return nil, err
	}

	out := make([]PatternRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, PatternRow{
			GuardianID:   asString(row["guardian_id"]),
			GuardianName: asString(row["guardian_name"]),
			PayerProfile: asString(row["payer_profile"]),
			RiskLevel:    asString(row["risk_level"]),
			Patterns:     asStrings(row["patterns"]),
			Payments:     asInt(row["payments"]),
			AvgLateness:  round2(asFloat(row["avg_lateness"])),
			Ignored:      asInt(row["ignored"]),
		})
	}
	return out, nil
}

// ClusterRow is one behavior cluster with its member count.
type ClusterRow struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Clusters lists BehaviorCluster nodes with member counts.
func (r *Reports) Clusters(ctx context.Context) ([]ClusterRow, error) {
	rows, err := r.q.Read(ctx, `
		MATCH (c:BehaviorCluster)
		OPTIONAL MATCH (g:Guardian)-[:BELONGS_TO]->(c)
		RETURN c.name AS name, count(g) AS members
		ORDER BY members DESC`, nil)
	if err != nil {
		return nil, err
	}

	out := make([]ClusterRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, ClusterRow{
			Name:    asString(row["name"]),
			Members: asInt(row["members"]),
		})
	}
	return out, nil
}

// Summary is the LLM-generated executive summary.
type Summary struct {
	Trends        []string `json:"trends"`
	Risks         []string `json:"risks"`
	Opportunities []string `json:"opportunities"`
	Actions       []string `json:"actions"`
	GeneratedBy   string   `json:"generated_by,omitempty"`
	GeneratedAt   string   `json:"generated_at,omitempty"`
}

// ExecutiveSummary aggregates the risk and projection reports and asks
// the model for trends, risks, opportunities and recommended actions.
func (r *Reports) ExecutiveSummary(ctx context.Context) (*Summary, error) {
	if r.llm == nil {
		return nil, fmt.Errorf("executive summary requires an LLM client")
	}

	risk, err := r.DesertionRisk(ctx, 40)
	if err != nil {
		return nil, err
	}
	projection, err := r.CashProjection(ctx, 90)
	if err != nil {
		return nil, err
	}

	highRisk := 0
	for _, row := range risk {
		if row.RiskLevel == "high" {
			highRisk++
		}
	}

	prompt := fmt.Sprintf(`Sos el analista financiero de un colegio. Generá un resumen ejecutivo a partir de estos datos:

- Alumnos en riesgo de deserción (score >= 40): %d
- De ellos, en riesgo alto: %d
- Cuotas impagas en los próximos 90 días: %d
- Monto total pendiente: %.2f
- Cobranza esperada (escenario realista): %.2f

Respondé SOLO con este JSON:
{"trends": ["..."], "risks": ["..."], "opportunities": ["..."], "actions": ["..."]}`,
		len(risk), highRisk, projection.InstallmentsCounted,
		projection.TotalPending, projection.ExpectedRealistic)

	resp, err := r.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("executive summary generation failed: %w", err)
	}

	var summary Summary
	if err := agent.DecodeJSON(resp.Content, &summary); err != nil {
		return nil, fmt.Errorf("executive summary is not valid JSON: %w", err)
	}
	summary.GeneratedBy = r.llm.Provider()
	summary.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return &summary, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// neo4j returns integers as int64 and lists as []interface{}; these
// coercions keep the report structs simple.
func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
