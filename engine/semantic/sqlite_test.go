package semantic

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/viant/sqlite-vec/vector"
)

func memStore(t *testing.T, dim int) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:", "motor_embeddings", dim)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestSQLite_CreateSchemaIdempotent(t *testing.T) {
	s := memStore(t, 2)
	if err := s.CreateSchema(context.Background()); err != nil {
		t.Fatalf("second CreateSchema: %v", err)
	}
}

func TestSQLite_EmptyStore(t *testing.T) {
	s := memStore(t, 2)
	results, err := s.QueryTopK(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty slice, got %v", results)
	}
}

func TestSQLite_TopKOrdering(t *testing.T) {
	ctx := context.Background()
	s := memStore(t, 2)
	chunks := []domain.EmbeddedChunk{
		embedded(1, 0, 0, 1),
		embedded(2, 0, 1, 0),
		embedded(3, 0, 1, 1),
		embedded(4, 0, -1, 0),
	}
	if err := s.BatchInsert(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}

	for _, k := range []int{1, 3, 4, 10} {
		results, err := s.QueryTopK(ctx, []float32{1, 0.1}, k)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if want := min(k, len(chunks)); len(results) != want {
			t.Fatalf("k=%d: got %d results, want %d", k, len(results), want)
		}
		for i := 1; i < len(results); i++ {
			if results[i].Distance < results[i-1].Distance {
				t.Fatalf("k=%d: results not ordered by distance", k)
			}
		}
		if results[0].PolicyID != 2 {
			t.Errorf("k=%d: nearest policy = %d, want 2", k, results[0].PolicyID)
		}
	}
}

func TestSQLite_BatchInsertAtomic(t *testing.T) {
	ctx := context.Background()
	s := memStore(t, 2)
	chunks := []domain.EmbeddedChunk{
		embedded(1, 0, 1, 0),
		embedded(2, 0, 0, 1),
		embedded(3, 0, 1),
	}
	err := s.BatchInsert(ctx, chunks)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("failed batch left %d rows", n)
	}
}

func TestSQLite_FieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memStore(t, 2)
	c := embedded(77, 0, 1, 0)
	c.ReasonForDecline = "Too many points"
	if err := s.BatchInsert(ctx, []domain.EmbeddedChunk{c}); err != nil {
		t.Fatal(err)
	}
	results, err := s.QueryTopK(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if r.PolicyID != 77 || r.Content != c.Content || r.ReasonForDecline != "Too many points" || r.Document != "doc" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Distance > 1e-6 {
		t.Fatalf("distance = %v, want 0", r.Distance)
	}
}

func TestSQLite_OpenerPersistsAcrossConnections(t *testing.T) {
	ctx := context.Background()
	cfg := config.Store{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "motor.db"), Table: "motor_embeddings"}
	open, err := NewOpener(cfg, 2)
	if err != nil {
		t.Fatal(err)
	}

	s, err := open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.BatchInsert(ctx, []domain.EmbeddedChunk{embedded(5, 0, 1, 0)}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	results, err := s.QueryTopK(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].PolicyID != 5 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSQLite_ReinsertUpserts(t *testing.T) {
	ctx := context.Background()
	s := memStore(t, 2)
	c := embedded(9, 0, 1, 0)
	for i := 0; i < 2; i++ {
		if err := s.BatchInsert(ctx, []domain.EmbeddedChunk{c}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("re-inserting one chunk left %d rows", n)
	}
}

func TestSQLite_StoresEncodedEmbedding(t *testing.T) {
	ctx := context.Background()
	s := memStore(t, 3)
	if err := s.BatchInsert(ctx, []domain.EmbeddedChunk{embedded(4, 0, 0.5, -1, 2)}); err != nil {
		t.Fatal(err)
	}
	var blob []byte
	if err := s.db.QueryRowContext(ctx, `SELECT embedding FROM "_vec_motor_embeddings"`).Scan(&blob); err != nil {
		t.Fatal(err)
	}
	got, err := vector.DecodeEmbedding(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 0.5 || got[1] != -1 || got[2] != 2 {
		t.Fatalf("decoded %v", got)
	}
}

func TestSQLite_ScanMatchesIndex(t *testing.T) {
	ctx := context.Background()
	s := memStore(t, 2)
	chunks := []domain.EmbeddedChunk{
		embedded(1, 0, 0, 1),
		embedded(2, 0, 1, 0),
		embedded(3, 0, 1, 1),
	}
	if err := s.BatchInsert(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	scanned, err := s.scanTopK(ctx, []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(scanned) != 2 || scanned[0].PolicyID != 2 || scanned[1].PolicyID != 3 {
		t.Fatalf("unexpected scan order: %+v", scanned)
	}
	matched, err := s.QueryTopK(ctx, []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range scanned {
		if matched[i].PolicyID != scanned[i].PolicyID {
			t.Fatalf("index order %d = %d, scan = %d", i, matched[i].PolicyID, scanned[i].PolicyID)
		}
	}
}
