package semantic

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps chunks in a pgvector table.
type PostgresStore struct {
	db    *sql.DB
	table string
	dim   int
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn, table string, dim int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("semantic: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("semantic: ping postgres: %w", err)
	}
	return NewPostgres(db, table, dim), nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db *sql.DB, table string, dim int) *PostgresStore {
	return &PostgresStore{db: db, table: table, dim: dim}
}

// Close closes the database handle.
func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) schema() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id bigserial PRIMARY KEY,
			document text,
			driver_id bigint,
			vehicle_id bigint,
			policy_id bigint,
			underwriting_decision text,
			risk_class text,
			reason_for_decline text,
			content text,
			tokens bigint,
			embedding vector(%d)
		)`, pq.QuoteIdentifier(p.table), p.dim),
	}
}

// CreateSchema enables pgvector and creates the table if absent.
func (p *PostgresStore) CreateSchema(ctx context.Context) error {
	for _, s := range p.schema() {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("semantic: create schema: %w", err)
		}
	}
	return nil
}

// BatchInsert copies all chunks inside one transaction.
func (p *PostgresStore) BatchInsert(ctx context.Context, chunks []domain.EmbeddedChunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkDims(chunks, p.dim); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("semantic: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(p.table,
		domain.ColDocument, domain.ColDriverID, domain.ColVehicleID, domain.ColPolicyID,
		domain.ColUnderwritingDecision, domain.ColRiskClass, domain.ColReasonForDecline,
		domain.ColContent, domain.ColTokens, "embedding"))
	if err != nil {
		return fmt.Errorf("semantic: prepare copy: %w", err)
	}
	for i, c := range chunks {
		if _, err = stmt.ExecContext(ctx,
			c.Document, c.DriverID, c.VehicleID, c.PolicyID,
			c.UnderwritingDecision, c.RiskClass, c.ReasonForDecline,
			c.Content, c.Tokens, pgvector.NewVector(c.Embedding)); err != nil {
			stmt.Close()
			return fmt.Errorf("semantic: copy row %d: %w", i, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("semantic: flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("semantic: close copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("semantic: commit: %w", err)
	}
	return nil
}

// QueryTopK orders rows by cosine distance (<=>) to embedding.
func (p *PostgresStore) QueryTopK(ctx context.Context, embedding []float32, k int) ([]domain.SimilarityResult, error) {
	if k <= 0 {
		return []domain.SimilarityResult{}, nil
	}
	q := fmt.Sprintf(`SELECT content, document, policy_id, underwriting_decision, risk_class,
		reason_for_decline, embedding <=> $1 AS distance
		FROM %s ORDER BY embedding <=> $1 LIMIT $2`, pq.QuoteIdentifier(p.table))
	rows, err := p.db.QueryContext(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("semantic: query top k: %w", err)
	}
	defer rows.Close()

	results := []domain.SimilarityResult{}
	for rows.Next() {
		var r domain.SimilarityResult
		var content, document, decision, class, reason sql.NullString
		var policy sql.NullInt64
		if err := rows.Scan(&content, &document, &policy, &decision, &class, &reason, &r.Distance); err != nil {
			return nil, fmt.Errorf("semantic: scan: %w", err)
		}
		r.Content, r.Document, r.PolicyID = content.String, document.String, policy.Int64
		r.UnderwritingDecision, r.RiskClass, r.ReasonForDecline = decision.String, class.String, reason.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic: rows: %w", err)
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, pq.QuoteIdentifier(p.table))).Scan(&n); err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return n, nil
}
