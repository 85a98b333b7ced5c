// Package casegraph mirrors ingested cases into Neo4j as
// (:Driver)-[:HOLDS]->(:Policy)-[:COVERS]->(:Vehicle).
package casegraph

import (
	"context"
	"fmt"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/pkg/fn"
	"github.com/WessleyAI/motor-risk/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const linkCypher = `MATCH (p:Policy {policy_id: $policy_id})
MERGE (d:Driver {driver_id: $driver_id})
MERGE (v:Vehicle {vehicle_id: $vehicle_id})
MERGE (d)-[:HOLDS]->(p)
MERGE (p)-[:COVERS]->(v)`

// Writer stores one Policy node per case.
type Writer struct {
	policies *repo.Neo4jRepo[domain.CaseRecord, int64]
}

// New creates a Writer on driver.
func New(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[domain.CaseRecord, int64]) *Writer {
	opts = append([]repo.Neo4jOption[domain.CaseRecord, int64]{repo.WithIDKey[domain.CaseRecord, int64](domain.ColPolicyID)}, opts...)
	return &Writer{policies: repo.NewNeo4jRepo(driver, "Policy", toMap, opts...)}
}

// Connect opens a Neo4j driver and verifies connectivity.
func Connect(ctx context.Context, url, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("casegraph: connect %s: %w", url, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("casegraph: verify %s: %w", url, err)
	}
	return driver, nil
}

// SaveCases merges every record and its driver and vehicle links. Records
// sharing a policy collapse into one node.
func (w *Writer) SaveCases(ctx context.Context, records []domain.CaseRecord) error {
	for _, rec := range fn.UniqueBy(records, policyID) {
		if err := w.policies.Merge(ctx, rec); err != nil {
			return fmt.Errorf("casegraph: merge policy %d: %w", rec.PolicyID, err)
		}
		params := map[string]any{
			"policy_id":  rec.PolicyID,
			"driver_id":  rec.DriverID,
			"vehicle_id": rec.VehicleID,
		}
		if err := w.policies.Exec(ctx, linkCypher, params); err != nil {
			return fmt.Errorf("casegraph: link policy %d: %w", rec.PolicyID, err)
		}
	}
	return nil
}

func policyID(r domain.CaseRecord) int64 { return r.PolicyID }


func toMap(r domain.CaseRecord) map[string]any {
	return map[string]any{
		domain.ColPolicyID:             r.PolicyID,
		domain.ColDocument:             r.Document,
		domain.ColUnderwritingDecision: r.UnderwritingDecision,
		domain.ColRiskClass:            r.RiskClass,
		domain.ColReasonForDecline:     r.ReasonForDecline,
	}
}

