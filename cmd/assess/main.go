// Command assess produces an underwriting recommendation for an applicant
// description, based on the most similar stored cases.
//
//	assess -query "35 year old, 2 claims, 2018 BMW 320d" -k 5
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
	"strings"
	"syscall"
	"time"

	"github.com/WessleyAI/motor-risk/engine/app"
	"github.com/WessleyAI/motor-risk/engine/assess"
	"github.com/WessleyAI/motor-risk/engine/config"
	"github.com/WessleyAI/motor-risk/engine/embed"
	"github.com/WessleyAI/motor-risk/engine/semantic"
	"github.com/WessleyAI/motor-risk/pkg/metrics"
	"github.com/charmbracelet/lipgloss"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		query      = flag.String("query", "", "applicant and vehicle description (stdin when empty)")
		k          = flag.Int("k", 0, "similar cases to retrieve (default from config)")
		pretty     = flag.Bool("pretty", false, "render a human-readable summary instead of JSON")
		showCases  = flag.Bool("cases", false, "include the retrieved cases in the JSON output")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	q := *query
	if q == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("read stdin", "error", err)
			os.Exit(2)
		}
		q = string(data)
	}

	res, err := run(cfg, q, *k, logger)
	if err != nil {
		logger.Error("assessment failed", "error", err)
		os.Exit(1)
	}

	switch {
	case *pretty:
		fmt.Println(render(res))
	case *showCases:
		printJSON(res)
	default:
		printJSON(res.Response)
	}
}

func run(cfg config.Config, query string, k int, logger *slog.Logger) (*assess.Result, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// one deadline over the whole embed, retrieve, generate chain
	ctx, cancel := context.WithTimeout(ctx, 2*cfg.LLM.Timeout)
	defer cancel()

	reg := metrics.New()
	app.ServeMetrics(ctx, cfg.Metrics, reg, "motor-assess", logger)

	backend, err := app.NewBackend(cfg.LLM)
	if err != nil {
		return nil, err
	}
	open, err := semantic.NewOpener(cfg.Store, cfg.Embedding.Dimension)
	if err != nil {
		return nil, err
	}
	pub, stopEvents := app.Events(cfg.Events, "motor-assess", logger)
	defer stopEvents()

	svc := assess.New(embed.New(backend, cfg.LLM.EmbeddingModel), open, backend, assess.Options{
		TopK:        cfg.Assess.TopK,
		Model:       cfg.LLM.CompletionModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger).WithMetrics(assess.NewMetrics(reg))
	if pub != nil {
		svc.WithNotifier(pub)
	}

	res, err := svc.AssessDetailed(ctx, query, k)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("assessment timed out after %s: %w", 2*cfg.LLM.Timeout, err)
	}
	return res, err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func render(res *assess.Result) string {
	r := res.Response
	decision := okStyle.Render(r.UnderwritingDecision)
	if strings.Contains(strings.ToLower(r.UnderwritingDecision), "decline") {
		decision = badStyle.Render(r.UnderwritingDecision)
	}
	line := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return labelStyle.Render(label+":") + " " + value
	}
	v := r.VehicleInformation
	body := strings.Join([]string{
		titleStyle.Render("Risk Assessment"),
		line("Decision", decision),
		line("Risk class", r.RiskClass),
		line("Reason for decline", r.ReasonForDecline),
		line("Vehicle", v.Description),
		line("Price", v.Price),
		line("Prepared price", v.PreparedPrice),
		line("Maintenance", v.MaintenanceCost),
		labelStyle.Render(fmt.Sprintf("based on %d similar cases in %s", len(res.Cases), res.Duration.Round(time.Millisecond))),
	}, "\n")
	return boxStyle.Render(body)
}
