package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/engine/events"
	"github.com/WessleyAI/motor-risk/engine/semantic"
	"github.com/WessleyAI/motor-risk/engine/tokenizer"
	"github.com/WessleyAI/motor-risk/pkg/fn"
)

// CaseSink receives the parsed records of a run, e.g. the Neo4j case graph.
type CaseSink interface {
	SaveCases(ctx context.Context, records []domain.CaseRecord) error
}

// Notifier is told about finished runs.
type Notifier interface {
	IngestCompleted(ctx context.Context, ev events.IngestEvent) error
}

// Summary reports the outcome of a run.
type Summary struct {
	Records       int     `json:"records"`
	Chunks        int     `json:"chunks"`
	Tokens        int     `json:"tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	Inserted      int     `json:"inserted"`
	// Stored is the store's row count after a successful insert, when the
	// backend can count.
	Stored int `json:"stored,omitempty"`
}

type rowCounter interface {
	Count(ctx context.Context) (int, error)
}

// Runner drives file-to-file embedding and file-to-store loading.
type Runner struct {
	Deps    Deps
	Counter tokenizer.Counter
	Cost    tokenizer.CostEstimator
	Open    semantic.Opener
	// Policy is config.PolicyPropagate or config.PolicySwallow. It governs
	// store failures during BatchInsert only.
	Policy string
	Sink   CaseSink
	Notify Notifier
}

func (r *Runner) log() *slog.Logger {
	if r.Deps.Logger != nil {
		return r.Deps.Logger
	}
	return slog.Default()
}

// Estimate counts the tokens of records and prices them.
func (r *Runner) Estimate(records []domain.CaseRecord) Summary {
	tokens := tokenizer.TotalTokens(r.Counter, records)
	return Summary{
		Records:       len(records),
		Tokens:        tokens,
		EstimatedCost: r.Cost.EmbeddingCost(tokens),
	}
}

// EstimateFile reads the case dataset at path and prices it without calling
// the embedding service.
func (r *Runner) EstimateFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	records, err := ReadCases(f)
	if err != nil {
		return Summary{}, err
	}
	return r.Estimate(records), nil
}

// ProcessCSV reads cases from in, embeds them and writes one row per chunk
// to out. The estimated cost is logged before the first embedding request.
func (r *Runner) ProcessCSV(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	records, err := ReadCases(in)
	if err != nil {
		return Summary{}, err
	}
	sum := r.Estimate(records)
	r.Deps.Metrics.observeCost(sum.EstimatedCost)
	r.log().Info("ingest.estimate", "records", sum.Records, "tokens", sum.Tokens, "estimated_cost", sum.EstimatedCost)

	chunks, err := ProcessDataset(ctx, r.Deps, records)
	if err != nil {
		return sum, err
	}
	sum.Chunks = len(chunks)
	sum.Tokens = fn.Reduce(chunks, 0, func(n int, c domain.EmbeddedChunk) int { return n + c.Tokens })

	if err := WriteEmbeddings(out, chunks); err != nil {
		return sum, err
	}
	if r.Sink != nil {
		if err := r.Sink.SaveCases(ctx, records); err != nil {
			r.log().Warn("ingest.graph_failed", "records", len(records), "error", err)
		}
	}
	return sum, nil
}

// ProcessCSVToEmbeddings runs ProcessCSV between two files.
func (r *Runner) ProcessCSVToEmbeddings(ctx context.Context, inPath, outPath string) (Summary, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: open %s: %w", inPath, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: create %s: %w", outPath, err)
	}
	sum, err := r.ProcessCSV(ctx, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("ingest: close %s: %w", outPath, cerr)
	}
	if err != nil {
		return sum, err
	}
	r.log().Info("ingest.embeddings_written", "path", outPath, "chunks", sum.Chunks, "tokens", sum.Tokens)
	return sum, nil
}

// Insert stores chunks in a single all-or-nothing batch on a freshly opened
// store and returns the store's row count afterwards, or zero when the
// backend cannot count. The store is closed on every path.
func (r *Runner) Insert(ctx context.Context, chunks []domain.EmbeddedChunk) (int, error) {
	store, err := r.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest: open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			r.log().Warn("ingest.store_close_failed", "error", cerr)
		}
	}()
	if err := store.CreateSchema(ctx); err != nil {
		return 0, fmt.Errorf("ingest: create schema: %w", err)
	}
	if err := store.BatchInsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("ingest: batch insert %d chunks: %w", len(chunks), err)
	}
	rc, ok := store.(rowCounter)
	if !ok {
		return 0, nil
	}
	n, err := rc.Count(ctx)
	if err != nil {
		r.log().Warn("ingest.count_failed", "error", err)
		return 0, nil
	}
	return n, nil
}

// BatchInsertFromFile loads an embeddings file into the store. Parse errors
// always fail. Store errors fail under the propagate policy and are logged
// and dropped under the swallow policy, in which case Inserted stays zero.
func (r *Runner) BatchInsertFromFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	chunks, err := ReadEmbeddings(f)
	f.Close()
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Records: len(fn.UniqueBy(chunks, func(c domain.EmbeddedChunk) string { return recordKey(c.CaseRecord) })),
		Chunks:  len(chunks),
		Tokens:  fn.Reduce(chunks, 0, func(n int, c domain.EmbeddedChunk) int { return n + c.Tokens }),
	}

	start := time.Now()
	stored, err := r.Insert(ctx, chunks)
	r.Deps.Metrics.observeInsert(len(chunks), err)
	if err == nil {
		sum.Inserted = len(chunks)
		sum.Stored = stored
		r.log().Info("ingest.inserted", "path", path, "chunks", len(chunks), "stored", stored, "duration", time.Since(start))
	}
	r.notify(ctx, path, sum, err)

	if err != nil {
		if r.Policy == config.PolicySwallow {
			r.log().Error("ingest.insert_failed", "path", path, "chunks", len(chunks), "error", err)
			return sum, nil
		}
		return sum, err
	}
	return sum, nil
}

func (r *Runner) notify(ctx context.Context, source string, sum Summary, err error) {
	if r.Notify == nil {
		return
	}
	ev := events.IngestEvent{
		Source:   source,
		Records:  sum.Records,
		Chunks:   sum.Chunks,
		Tokens:   sum.Tokens,
		Inserted: err == nil,
		At:       time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if perr := r.Notify.IngestCompleted(ctx, ev); perr != nil {
		r.log().Warn("ingest.notify_failed", "error", perr)
	}
}
