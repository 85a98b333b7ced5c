// Package ingest turns case records into embedded chunks and loads them into
// the vector store: Validate → Chunk → Embed, then batch insert.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/motor-risk/engine/chunk"
	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/engine/embed"
	"github.com/WessleyAI/motor-risk/pkg/fn"
)

// EmbedBatchSize is the default max chunks per embedding request.
const EmbedBatchSize = 100

// Deps holds the collaborators of the ingestion pipeline.
type Deps struct {
	Chunker   *chunk.Chunker
	Embedder  embed.Embedder
	BatchSize int
	Metrics   *Metrics
	Logger    *slog.Logger
}

// --- Pipeline Stages ---

// Validate checks every record, failing the whole batch on the first bad one.
var Validate fn.Stage[[]domain.CaseRecord, []domain.CaseRecord] = func(_ context.Context, records []domain.CaseRecord) fn.Result[[]domain.CaseRecord] {
	for i, rec := range records {
		if err := domain.ValidateCaseRecord(rec); err != nil {
			return fn.Err[[]domain.CaseRecord](fmt.Errorf("ingest: record %d: %w", i, err))
		}
	}
	return fn.Ok(records)
}

// NewChunk creates a stage that chunks all records in order.
func NewChunk(c *chunk.Chunker, m *Metrics) fn.Stage[[]domain.CaseRecord, []domain.Chunk] {
	return func(_ context.Context, records []domain.CaseRecord) fn.Result[[]domain.Chunk] {
		chunks := c.ChunkAll(records)
		m.observeChunks(records, chunks)
		return fn.Ok(chunks)
	}
}

// NewEmbed creates a stage that embeds chunk contents in sub-batches of
// batchSize and pairs each vector with its chunk by absolute position.
func NewEmbed(e embed.Embedder, batchSize int, m *Metrics) fn.Stage[[]domain.Chunk, []domain.EmbeddedChunk] {
	if batchSize <= 0 {
		batchSize = EmbedBatchSize
	}
	return func(ctx context.Context, chunks []domain.Chunk) fn.Result[[]domain.EmbeddedChunk] {
		out := make([]domain.EmbeddedChunk, 0, len(chunks))
		for _, batch := range fn.Chunk(chunks, batchSize) {
			texts := fn.Map(batch, func(c domain.Chunk) string { return c.Content })

			start := time.Now()
			vecs, err := e.EmbedBatch(ctx, texts)
			m.observeEmbed(start, err)
			if err != nil {
				return fn.Err[[]domain.EmbeddedChunk](fmt.Errorf("ingest: embed chunks %d-%d: %w", len(out), len(out)+len(batch)-1, err))
			}
			if len(vecs) != len(batch) {
				return fn.Err[[]domain.EmbeddedChunk](fmt.Errorf("ingest: embed chunks %d-%d: got %d vectors: %w",
					len(out), len(out)+len(batch)-1, len(vecs), domain.ErrLengthMismatch))
			}
			for j, c := range batch {
				out = append(out, domain.EmbeddedChunk{Chunk: c, Embedding: vecs[j]})
			}
		}
		return fn.Ok(out)
	}
}

// LoggedStage wraps a stage with entry/exit logging and duration.
func LoggedStage[In, Out any](name string, log *slog.Logger, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		r := stage(ctx, in)
		if r.IsErr() {
			_, err := r.Unwrap()
			log.Error("stage.failed", "stage", name, "duration", time.Since(start), "error", err)
			return r
		}
		log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		return r
	}
}

// NewPipeline constructs the dataset pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[[]domain.CaseRecord, []domain.EmbeddedChunk] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validate := fn.TracedStage("ingest.validate", LoggedStage("validate", log, Validate))
	chunked := fn.TracedStage("ingest.chunk", LoggedStage("chunk", log, NewChunk(deps.Chunker, deps.Metrics)))
	embedded := fn.TracedStage("ingest.embed", LoggedStage("embed", log, NewEmbed(deps.Embedder, deps.BatchSize, deps.Metrics)))

	return fn.Then(validate, fn.Then(chunked, embedded))
}

// ProcessDataset runs records through the pipeline. Output order follows
// record order, then chunk order within a record.
func ProcessDataset(ctx context.Context, deps Deps, records []domain.CaseRecord) ([]domain.EmbeddedChunk, error) {
	return NewPipeline(deps)(ctx, records).Unwrap()
}
