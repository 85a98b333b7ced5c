// Package semantic owns vector persistence and nearest-neighbour retrieval
// for embedded case chunks. Postgres (pgvector), Qdrant and SQLite backends
// share one Store contract.
package semantic

import (
	"context"
	"fmt"

	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/domain"
)

// Store persists embedded chunks and answers top-k similarity queries.
type Store interface {
	// CreateSchema creates the backing structure if it does not exist.
	CreateSchema(ctx context.Context) error
	// BatchInsert stores all chunks or none of them.
	BatchInsert(ctx context.Context, chunks []domain.EmbeddedChunk) error
	// QueryTopK returns at most k entries ordered by ascending distance.
	// An empty store yields an empty slice.
	QueryTopK(ctx context.Context, embedding []float32, k int) ([]domain.SimilarityResult, error)
	Close() error
}

// Opener acquires a Store for the duration of one top-level operation.
type Opener func(ctx context.Context) (Store, error)

// NewOpener returns an Opener for the configured driver.
func NewOpener(cfg config.Store, dim int) (Opener, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return func(ctx context.Context) (Store, error) {
			return OpenPostgres(ctx, cfg.DSN, cfg.Table, dim)
		}, nil
	case config.DriverQdrant:
		return func(ctx context.Context) (Store, error) {
			return NewQdrant(cfg.QdrantAddr, cfg.Collection, dim)
		}, nil
	case config.DriverSQLite:
		return func(ctx context.Context) (Store, error) {
			return OpenSQLite(ctx, cfg.DSN, cfg.Table, dim)
		}, nil
	default:
		return nil, fmt.Errorf("semantic: unknown driver %q", cfg.Driver)
	}
}

func checkDims(chunks []domain.EmbeddedChunk, dim int) error {
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("semantic: chunk %d has %d dims, want %d: %w", i, len(c.Embedding), dim, domain.ErrDimensionMismatch)
		}
	}
	return nil
}
