// Package app wires configuration into the collaborators shared by the
// ingest and assess binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/WessleyAI/motor-risk/engine/casegraph"
	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/embed"
	"github.com/WessleyAI/motor-risk/engine/events"
	"github.com/WessleyAI/motor-risk/engine/generate"
	"github.com/WessleyAI/motor-risk/pkg/metrics"
	"github.com/WessleyAI/motor-risk/pkg/mid"
	"github.com/WessleyAI/motor-risk/pkg/natsutil"
	"github.com/WessleyAI/motor-risk/pkg/ollama"
	"github.com/WessleyAI/motor-risk/pkg/openai"
)

// NewLogger returns a JSON logger writing to w at level ("debug", "info",
// "warn" or "error"; anything else is info).
func NewLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
}

// Backend can both embed and complete.
type Backend interface {
	embed.Backend
	generate.Generator
}

// NewBackend returns the HTTP client for the configured provider.
func NewBackend(cfg config.LLM) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.APIKey, openai.WithBaseURL(cfg.BaseURL), openai.WithTimeout(cfg.Timeout)), nil
	case config.ProviderOllama:
		c, err := ollama.NewClient(cfg.OllamaURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("app: unknown llm provider %q", cfg.Provider)
	}
}

// ServeMetrics serves reg on cfg.Port until ctx is done. A zero port
// disables the endpoint. Errors are logged.
func ServeMetrics(ctx context.Context, cfg config.Metrics, reg *metrics.Registry, service string, log *slog.Logger) {
	if cfg.Port <= 0 {
		return
	}
	h := mid.Chain(reg.Mux(), mid.Recover(log), mid.Logger(log), mid.OTel(service))
	go func() {
		log.Info("metrics listening", "port", cfg.Port)
		if err := metrics.ListenAndServe(ctx, cfg.Port, h); err != nil {
			log.Error("metrics server failed", "port", cfg.Port, "error", err)
		}
	}()
}

// Events connects to NATS when configured. The returned publisher is nil,
// and therefore silent, when no URL is set or the connection fails; stop is
// always safe to call.
func Events(cfg config.Events, name string, log *slog.Logger) (pub *events.Publisher, stop func()) {
	if cfg.NATSURL == "" {
		return nil, func() {}
	}
	nc, err := natsutil.Connect(cfg.NATSURL, name)
	if err != nil {
		log.Warn("nats unavailable, events disabled", "url", cfg.NATSURL, "error", err)
		return nil, func() {}
	}
	log.Info("connected to NATS", "url", cfg.NATSURL)
	return events.NewPublisher(nc), func() { nc.Drain() }
}

// Graph connects the case graph when configured. Like Events, failures only
// disable the feature.
func Graph(ctx context.Context, cfg config.Graph, log *slog.Logger) (w *casegraph.Writer, stop func()) {
	if cfg.URL == "" {
		return nil, func() {}
	}
	driver, err := casegraph.Connect(ctx, cfg.URL, cfg.User, cfg.Password)
	if err != nil {
		log.Warn("neo4j unavailable, case graph disabled", "url", cfg.URL, "error", err)
		return nil, func() {}
	}
	log.Info("connected to Neo4j", "url", cfg.URL)
	return casegraph.New(driver), func() { driver.Close(context.Background()) }
}
