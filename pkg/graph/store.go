// Package graph implements the analytics service: an ETL from the
// orchestrator's cache tables into neo4j, LLM enrichment of guardian
// payment behavior, and the report queries served under /api/v1/reports.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Querier is the cypher surface the ETL, enrichment and reports run on.
type Querier interface {
	Read(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error)
	Write(ctx context.Context, cypher string, params map[string]interface{}) error
}

// Store is the neo4j-backed Querier.
type Store struct {
	driver neo4j.DriverWithContext
}

// NewStore connects to neo4j with basic auth.
func NewStore(uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return &Store{driver: driver}, nil
}

// Verify checks connectivity to the neo4j server.
func (s *Store) Verify(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Read runs a cypher query in a read transaction and returns the records
// as maps keyed by return alias.
func (s *Store) Read(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer func() { _ = session.Close(ctx) }()

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]interface{}, 0, len(records))
		for _, record := range records {
			rows = append(rows, record.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cypher read failed: %w", err)
	}
	return out.([]map[string]interface{}), nil
}

// Write runs a cypher statement in a write transaction.
func (s *Store) Write(ctx context.Context, cypher string, params map[string]interface{}) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return nil, result.Err()
	})
	if err != nil {
		return fmt.Errorf("cypher write failed: %w", err)
	}
	return nil
}

// InitConstraints creates the uniqueness constraints the MERGE model
// depends on. Safe to run repeatedly.
func (s *Store) InitConstraints(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT guardian_erp_id IF NOT EXISTS FOR (g:Guardian) REQUIRE g.erp_id IS UNIQUE",
		"CREATE CONSTRAINT student_erp_id IF NOT EXISTS FOR (s:Student) REQUIRE s.erp_id IS UNIQUE",
		"CREATE CONSTRAINT installment_erp_id IF NOT EXISTS FOR (i:Installment) REQUIRE i.erp_id IS UNIQUE",
		"CREATE CONSTRAINT grade_label IF NOT EXISTS FOR (g:Grade) REQUIRE g.label IS UNIQUE",
		"CREATE CONSTRAINT ticket_id IF NOT EXISTS FOR (t:Ticket) REQUIRE t.id IS UNIQUE",
		"CREATE CONSTRAINT cluster_name IF NOT EXISTS FOR (c:BehaviorCluster) REQUIRE c.name IS UNIQUE",
	}
	for _, stmt := range statements {
		if err := s.Write(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}
