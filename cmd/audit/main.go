// Command audit follows the ingest and assessment event streams and writes
// every event to stdout as one JSON line.
//
//	audit -config motor.yaml >> audit.jsonl
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/WessleyAI/motor-risk/engine/app"
	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/events"
	"github.com/WessleyAI/motor-risk/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Read(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("audit failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if cfg.Events.NATSURL == "" {
		return errors.New("NATS_URL is not set")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := natsutil.Connect(cfg.Events.NATSURL, "motor-audit")
	if err != nil {
		return err
	}
	defer nc.Drain()

	if err := subscribe(nc, newRecorder(os.Stdout, logger), logger); err != nil {
		return err
	}
	logger.Info("audit listening", "url", cfg.Events.NATSURL)
	<-ctx.Done()
	return nil
}

type entry struct {
	Subject string `json:"subject"`
	Event   any    `json:"event"`
}

// recorder serializes events from concurrent subscriptions onto one writer.
type recorder struct {
	mu  sync.Mutex
	enc *json.Encoder
	log *slog.Logger
}

func newRecorder(w io.Writer, log *slog.Logger) *recorder {
	return &recorder{enc: json.NewEncoder(w), log: log}
}

func (r *recorder) write(subject string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(entry{Subject: subject, Event: ev})
}

func (r *recorder) assessment(_ context.Context, ev events.AssessmentEvent) error {
	r.log.Debug("assessment event", "retrieved", ev.Retrieved, "decision", ev.Response.UnderwritingDecision)
	return r.write(events.SubjectAssessmentCompleted, ev)
}

func (r *recorder) ingest(_ context.Context, ev events.IngestEvent) error {
	if ev.Error != "" {
		r.log.Warn("ingest run failed", "source", ev.Source, "error", ev.Error)
	}
	return r.write(events.SubjectIngestCompleted, ev)
}

func subscribe(nc *nats.Conn, r *recorder, log *slog.Logger) error {
	if _, err := events.OnAssessment(nc, log, r.assessment); err != nil {
		return fmt.Errorf("audit: subscribe assessments: %w", err)
	}
	if _, err := events.OnIngest(nc, log, r.ingest); err != nil {
		return fmt.Errorf("audit: subscribe ingest: %w", err)
	}
	return nc.Flush()
}
