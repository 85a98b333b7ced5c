// Command ingest embeds the motor-insurance case dataset and loads the
// embeddings into the vector store.
//
//	ingest -in cases.csv -out embeddings.csv
//	ingest -in cases.csv -estimate
//	ingest -out embeddings.csv -skip-embed
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/motor-risk/engine/app"
	"github.com/WessleyAI/motor-risk/engine/chunk"
	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/embed"
	"github.com/WessleyAI/motor-risk/engine/ingest"
	"github.com/WessleyAI/motor-risk/engine/semantic"
	"github.com/WessleyAI/motor-risk/engine/tokenizer"
	"github.com/WessleyAI/motor-risk/pkg/metrics"
)

type flags struct {
	config     string
	in         string
	out        string
	skipEmbed  bool
	skipInsert bool
	estimate   bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "optional YAML config file")
	flag.StringVar(&f.in, "in", "motor_insurance_cases.csv", "case dataset CSV")
	flag.StringVar(&f.out, "out", "motor_insurance_embeddings.csv", "embeddings CSV (written, then loaded)")
	flag.BoolVar(&f.skipEmbed, "skip-embed", false, "load an existing embeddings file only")
	flag.BoolVar(&f.skipInsert, "skip-insert", false, "write the embeddings file only")
	flag.BoolVar(&f.estimate, "estimate", false, "print the embedding cost estimate and exit")
	flag.Parse()

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, f, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, f flags, logger *slog.Logger) error {
	if f.skipEmbed && f.skipInsert {
		return errors.New("nothing to do: -skip-embed and -skip-insert both set")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counter, err := tokenizer.New(cfg.Chunking.Encoding)
	if err != nil {
		return err
	}
	cost := tokenizer.CostEstimator{PerThousand: cfg.Cost.PerThousandTokens}

	if f.estimate {
		r := &ingest.Runner{Counter: counter, Cost: cost, Deps: ingest.Deps{Logger: logger}}
		sum, err := r.EstimateFile(f.in)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(sum)
	}

	reg := metrics.New()
	app.ServeMetrics(ctx, cfg.Metrics, reg, "motor-ingest", logger)

	backend, err := app.NewBackend(cfg.LLM)
	if err != nil {
		return err
	}
	open, err := semantic.NewOpener(cfg.Store, cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	pub, stopEvents := app.Events(cfg.Events, "motor-ingest", logger)
	defer stopEvents()

	r := &ingest.Runner{
		Deps: ingest.Deps{
			Chunker:   chunk.New(cfg.Chunking.MaxTokensPerChunk, counter),
			Embedder:  embed.New(backend, cfg.LLM.EmbeddingModel),
			BatchSize: cfg.Embedding.BatchSize,
			Metrics:   ingest.NewMetrics(reg),
			Logger:    logger,
		},
		Counter: counter,
		Cost:    cost,
		Open:    open,
		Policy:  cfg.Store.InsertPolicy,
	}
	if pub != nil {
		r.Notify = pub
	}

	if !f.skipEmbed {
		graph, stopGraph := app.Graph(ctx, cfg.Graph, logger)
		defer stopGraph()
		if graph != nil {
			r.Sink = graph
		}

		sum, err := r.ProcessCSVToEmbeddings(ctx, f.in, f.out)
		if err != nil {
			return err
		}
		logger.Info("embeddings ready", "records", sum.Records, "chunks", sum.Chunks, "tokens", sum.Tokens, "estimated_cost", sum.EstimatedCost)
	}

	if !f.skipInsert {
		sum, err := r.BatchInsertFromFile(ctx, f.out)
		if err != nil {
			return err
		}
		logger.Info("insert finished", "chunks", sum.Chunks, "inserted", sum.Inserted, "driver", cfg.Store.Driver)
	}
	return nil
}
