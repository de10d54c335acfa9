package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/colegio-digital/gestor/pkg/agent"
	"github.com/colegio-digital/gestor/pkg/llm"
)

// Enricher derives payer profiles, risk levels and behavior clusters from
// the graph with an LLM.
type Enricher struct {
	q      Querier
	llm    llm.Client
	logger *slog.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(q Querier, client llm.Client) *Enricher {
	return &Enricher{
		q:      q,
		llm:    client,
		logger: slog.Default().With("component", "graph-enrichment"),
	}
}

// EnrichResult reports what one enrichment run produced.
type EnrichResult struct {
	ProfilesClassified int  `json:"profiles_classified"`
	ClustersBuilt      int  `json:"clusters_built"`
	InsightsStored     bool `json:"insights_stored"`
}

// payerClassification is the JSON shape the model is asked for.
type payerClassification struct {
	Profile   string   `json:"profile"`
	RiskLevel string   `json:"risk_level"`
	Reason    string   `json:"reason"`
	Patterns  []string `json:"patterns"`
}

var validProfiles = map[string]bool{
	"punctual": true, "occasional": true, "delinquent": true, "new": true,
}

var validRiskLevels = map[string]bool{
	"low": true, "medium": true, "high": true,
}

// EnrichAll runs profile classification, clustering and insight
// generation in order.
func (e *Enricher) EnrichAll(ctx context.Context) (EnrichResult, error) {
	var result EnrichResult

	classified, err := e.ClassifyPayers(ctx)
	if err != nil {
		return result, err
	}
	result.ProfilesClassified = classified

	clusters, err := e.BuildClusters(ctx)
	if err != nil {
		return result, err
	}
	result.ClustersBuilt = clusters

	if err := e.StoreInsights(ctx); err != nil {
		return result, err
	}
	result.InsightsStored = true
	return result, nil
}

// ClassifyPayers asks the model for a payer profile per guardian with
// payment history and writes it back onto the Guardian node.
func (e *Enricher) ClassifyPayers(ctx context.Context) (int, error) {
	rows, err := e.q.Read(ctx, `
		MATCH (g:Guardian)-[:RESPONSIBLE_OF]->(:Student)
		OPTIONAL MATCH (g)-[p:PAID]->(:Installment)
		OPTIONAL MATCH (g)-[ig:IGNORED_NOTIFICATION]->(:Installment)
		OPTIONAL MATCH (g)-[:CREATED_TICKET]->(t:Ticket)
		WITH g,
		     count(DISTINCT p) AS payments,
		     coalesce(avg(p.lateness_days), 0) AS avg_lateness,
		     coalesce(max(p.lateness_days), 0) AS max_lateness,
		     count(DISTINCT ig) AS ignored,
		     count(DISTINCT t) AS tickets
		WHERE payments > 0 OR ignored > 0
		RETURN g.erp_id AS erp_id,
		       g.name AS name,
		       payments, avg_lateness, max_lateness, ignored, tickets
		LIMIT 100`, nil)
	if err != nil {
		return 0, err
	}

	classified := 0
	for _, row := range rows {
		classification, err := e.classifyOne(ctx, row)
		if err != nil {
			e.logger.Warn("Payer classification failed",
				"guardian_id", row["erp_id"],
				"error", err)
			continue
		}

		err = e.q.Write(ctx, `
			MATCH (g:Guardian {erp_id: $id})
			SET g.payer_profile = $profile,
			    g.risk_level = $risk,
			    g.patterns = $patterns,
			    g.classification_reason = $reason,
			    g.classified_at = datetime()`,
			map[string]interface{}{
				"id":       row["erp_id"],
				"profile":  classification.Profile,
				"risk":     classification.RiskLevel,
				"patterns": toParamList(classification.Patterns),
				"reason":   classification.Reason,
			})
		if err != nil {
			return classified, err
		}
		classified++
	}
	return classified, nil
}

func (e *Enricher) classifyOne(ctx context.Context, row map[string]interface{}) (payerClassification, error) {
	prompt := fmt.Sprintf(`Clasificá el perfil de pago de este responsable de alumno:

- Pagos registrados: %v
- Demora promedio (días): %v
- Demora máxima (días): %v
- Recordatorios ignorados: %v
- Gestiones abiertas: %v

Categorías de perfil:
- punctual: paga a tiempo o con demora mínima (0-5 días)
- occasional: paga con demoras moderadas (6-30 días)
- delinquent: demoras frecuentes o mayores a 30 días
- new: sin historial suficiente (menos de 2 pagos)

Respondé SOLO con este JSON:
{"profile": "punctual|occasional|delinquent|new", "risk_level": "low|medium|high", "reason": "explicación breve", "patterns": ["patrón 1", "patrón 2"]}`,
		row["payments"], row["avg_lateness"], row["max_lateness"],
		row["ignored"], row["tickets"])

	resp, err := e.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return payerClassification{}, err
	}
	return parseClassification(resp.Content)
}

// parseClassification decodes and normalizes one model classification.
func parseClassification(content string) (payerClassification, error) {
	var out payerClassification
	if err := agent.DecodeJSON(content, &out); err != nil {
		return out, err
	}
	out.Profile = strings.ToLower(strings.TrimSpace(out.Profile))
	out.RiskLevel = strings.ToLower(strings.TrimSpace(out.RiskLevel))
	if !validProfiles[out.Profile] {
		return out, fmt.Errorf("unknown payer profile %q", out.Profile)
	}
	if !validRiskLevels[out.RiskLevel] {
		out.RiskLevel = "medium"
	}
	return out, nil
}

// BuildClusters groups guardians by payer profile into BehaviorCluster
// nodes. Returns the number of clusters with members.
func (e *Enricher) BuildClusters(ctx context.Context) (int, error) {
	rows, err := e.q.Read(ctx, `
		MATCH (g:Guardian)
		WHERE g.payer_profile IS NOT NULL
		RETURN g.payer_profile AS profile, count(g) AS members`, nil)
	if err != nil {
		return 0, err
	}

	built := 0
	for _, row := range rows {
		profile, _ := row["profile"].(string)
		if profile == "" {
			continue
		}
		err := e.q.Write(ctx, `
			MERGE (c:BehaviorCluster {name: $name})
			SET c.updated_at = datetime()
			WITH c
			MATCH (g:Guardian {payer_profile: $name})
			MERGE (g)-[:BELONGS_TO]->(c)`,
			map[string]interface{}{"name": profile})
		if err != nil {
			return built, err
		}
		built++
	}
	return built, nil
}

// StoreInsights generates an executive summary and caches it on a
// PredictiveInsights node for the report endpoint.
func (e *Enricher) StoreInsights(ctx context.Context) error {
	reports := NewReports(e.q, e.llm)
	summary, err := reports.ExecutiveSummary(ctx)
	if err != nil {
		return err
	}

	return e.q.Write(ctx, `
		MERGE (p:PredictiveInsights {id: 'latest'})
		SET p.trends = $trends,
		    p.risks = $risks,
		    p.opportunities = $opportunities,
		    p.actions = $actions,
		    p.generated_by = $provider,
		    p.generated_at = datetime($at)`,
		map[string]interface{}{
			"trends":        toParamList(summary.Trends),
			"risks":         toParamList(summary.Risks),
			"opportunities": toParamList(summary.Opportunities),
			"actions":       toParamList(summary.Actions),
			"provider":      summary.GeneratedBy,
			"at":            time.Now().UTC().Format(time.RFC3339),
		})
}

// toParamList converts to the generic list shape the driver serializes.
func toParamList(items []string) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
