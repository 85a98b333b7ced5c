package semantic

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vec"
	"github.com/viant/sqlite-vec/vector"
)

// SQLiteStore keeps chunks in a sqlite-vec shadow table and answers top-k
// queries with a MATCH over the vec virtual table named after the store.
// The table name doubles as the dataset id.
type SQLiteStore struct {
	db     *sql.DB
	vtable string
	shadow string
	dim    int
}

// OpenSQLite opens (or creates) the database at path and registers the vec
// module. ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path, table string, dim int) (*SQLiteStore, error) {
	db, err := engine.Open(path)
	if err != nil {
		return nil, fmt.Errorf("semantic: open sqlite: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// each pooled connection would see its own database
		db.SetMaxOpenConns(1)
	}
	// must run before the first connection is opened
	if err := vec.Register(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("semantic: register vec: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("semantic: ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db, vtable: table, shadow: "_vec_" + table, dim: dim}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateSchema creates the shadow table, the index storage table and the vec
// virtual table if absent.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vector_storage (
			shadow_table_name TEXT NOT NULL,
			dataset_id        TEXT NOT NULL DEFAULT '',
			"index"           BLOB,
			PRIMARY KEY (shadow_table_name, dataset_id)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			dataset_id            TEXT NOT NULL,
			id                    TEXT NOT NULL,
			document              TEXT,
			driver_id             INTEGER,
			vehicle_id            INTEGER,
			policy_id             INTEGER,
			underwriting_decision TEXT,
			risk_class            TEXT,
			reason_for_decline    TEXT,
			content               TEXT,
			tokens                INTEGER,
			embedding             BLOB NOT NULL,
			archived              INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, id)
		)`, s.shadow),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %q USING vec(doc_id)`, s.vtable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if noVecModule(err) && strings.Contains(stmt, "VIRTUAL TABLE") {
				continue
			}
			return fmt.Errorf("semantic: create schema: %w", err)
		}
	}
	return nil
}

// BatchInsert upserts all chunks in one transaction. A chunk with the wrong
// dimension aborts the whole batch.
func (s *SQLiteStore) BatchInsert(ctx context.Context, chunks []domain.EmbeddedChunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("semantic: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q
		(dataset_id, id, document, driver_id, vehicle_id, policy_id, underwriting_decision,
		 risk_class, reason_for_decline, content, tokens, embedding, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(dataset_id, id) DO UPDATE SET
			document=excluded.document,
			driver_id=excluded.driver_id,
			underwriting_decision=excluded.underwriting_decision,
			risk_class=excluded.risk_class,
			reason_for_decline=excluded.reason_for_decline,
			content=excluded.content,
			tokens=excluded.tokens,
			embedding=excluded.embedding,
			archived=0`, s.shadow))
	if err != nil {
		return fmt.Errorf("semantic: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if len(c.Embedding) != s.dim {
			return fmt.Errorf("semantic: chunk %d has %d dims, want %d: %w", i, len(c.Embedding), s.dim, domain.ErrDimensionMismatch)
		}
		blob, encErr := vector.EncodeEmbedding(c.Embedding)
		if encErr != nil {
			return fmt.Errorf("semantic: encode chunk %d: %w", i, encErr)
		}
		if _, err = stmt.ExecContext(ctx,
			s.vtable, PointID(c.Chunk),
			c.Document, c.DriverID, c.VehicleID, c.PolicyID,
			c.UnderwritingDecision, c.RiskClass, c.ReasonForDecline,
			c.Content, c.Tokens, blob); err != nil {
			return fmt.Errorf("semantic: insert row %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("semantic: commit: %w", err)
	}
	return nil
}

// QueryTopK matches embedding against the vec index. When the vec module is
// unavailable on the connection it falls back to scanning the shadow table.
func (s *SQLiteStore) QueryTopK(ctx context.Context, embedding []float32, k int) ([]domain.SimilarityResult, error) {
	if k <= 0 {
		return []domain.SimilarityResult{}, nil
	}
	blob, err := vector.EncodeEmbedding(embedding)
	if err != nil {
		return nil, fmt.Errorf("semantic: encode query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT d.content, d.document, d.policy_id,
		d.underwriting_decision, d.risk_class, d.reason_for_decline, v.match_score
		FROM %q v
		JOIN %q d ON d.dataset_id = v.dataset_id AND d.id = v.doc_id
		WHERE v.dataset_id = ?
		  AND v.doc_id MATCH ?
		  AND d.archived = 0
		ORDER BY v.match_score DESC
		LIMIT ?`, s.vtable, s.shadow), s.vtable, blob, k)
	if err != nil && (noVecModule(err) || strings.Contains(err.Error(), "no such table: "+s.vtable)) {
		return s.scanTopK(ctx, embedding, k)
	}
	if err != nil {
		return nil, fmt.Errorf("semantic: query top k: %w", err)
	}
	defer rows.Close()

	results := []domain.SimilarityResult{}
	for rows.Next() {
		var r domain.SimilarityResult
		var score float64
		if err := rows.Scan(&r.Content, &r.Document, &r.PolicyID,
			&r.UnderwritingDecision, &r.RiskClass, &r.ReasonForDecline, &score); err != nil {
			return nil, fmt.Errorf("semantic: scan: %w", err)
		}
		r.Distance = 1 - score
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic: rows: %w", err)
	}
	return results, nil
}

// scanTopK ranks every live row by cosine distance in process.
func (s *SQLiteStore) scanTopK(ctx context.Context, embedding []float32, k int) ([]domain.SimilarityResult, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT content, document, policy_id,
		underwriting_decision, risk_class, reason_for_decline, embedding
		FROM %q WHERE dataset_id = ? AND archived = 0`, s.shadow), s.vtable)
	if err != nil {
		return nil, fmt.Errorf("semantic: scan top k: %w", err)
	}
	defer rows.Close()

	results := []domain.SimilarityResult{}
	for rows.Next() {
		var r domain.SimilarityResult
		var blob []byte
		if err := rows.Scan(&r.Content, &r.Document, &r.PolicyID,
			&r.UnderwritingDecision, &r.RiskClass, &r.ReasonForDecline, &blob); err != nil {
			return nil, fmt.Errorf("semantic: scan: %w", err)
		}
		stored, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("semantic: decode embedding: %w", err)
		}
		if r.Distance, err = CosineDistance(embedding, stored); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic: rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE dataset_id = ? AND archived = 0`, s.shadow)
	if err := s.db.QueryRowContext(ctx, q, s.vtable).Scan(&n); err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return n, nil
}

func noVecModule(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such module: vec") ||
		strings.Contains(msg, "unable to use function MATCH")
}
