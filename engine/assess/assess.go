// Package assess orchestrates a retrieval-augmented risk assessment: embed
// the applicant description, retrieve similar historical cases, prompt the
// completion model with them and parse its structured recommendation.
package assess

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/engine/embed"
	"github.com/WessleyAI/motor-risk/engine/events"
	"github.com/WessleyAI/motor-risk/engine/generate"
	"github.com/WessleyAI/motor-risk/engine/semantic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// State is a step of an assessment. Steps run in declaration order.
type State int

const (
	EmbeddingQuery State = iota
	RetrievingSimilar
	AssemblingPrompt
	Generating
	ParsingResponse
	Done
)

var stateNames = [...]string{"embedding_query", "retrieving_similar", "assembling_prompt", "generating", "parsing_response", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// StageError reports the step an assessment failed in.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("assess: %s: %v", e.State, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Notifier is told about finished assessments.
type Notifier interface {
	AssessmentCompleted(ctx context.Context, ev events.AssessmentEvent) error
}

// Options configures the assessment behaviour.
type Options struct {
	TopK         int
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// DefaultOptions returns deterministic sampling and the standard prompt.
func DefaultOptions() Options {
	return Options{
		TopK:         5,
		Model:        "gpt-4",
		Temperature:  0,
		MaxTokens:    1000,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// DefaultSystemPrompt describes the four-field answer the parser expects.
const DefaultSystemPrompt = `You are an AI assistant that provides risk assessments for motor insurance.
Respond with a single JSON object and nothing else, using exactly these keys:
"underwriting_decision": the underwriting decision,
"risk_class": the risk class,
"reason_for_decline": the reason for decline, or "N/A" when approved,
"vehicle_information": an object with "description", "price", "prepared_price" and "maintenance_cost".
Vehicle information should include the price, prepared price, and any additional costs to maintain it.
Ensure that the structure is consistent and responses are concise.`

// Result is a parsed assessment together with the cases it was based on.
type Result struct {
	Response domain.AssessmentResponse `json:"response"`
	Cases    []domain.SimilarityResult `json:"cases"`
	Raw      string                    `json:"-"`
	Duration time.Duration             `json:"-"`
}

// Service runs assessments. It holds no per-request state.
type Service struct {
	embedder  embed.Embedder
	open      semantic.Opener
	generator generate.Generator
	opts      Options
	logger    *slog.Logger
	metrics   *Metrics
	notify    Notifier
}

// New creates a Service. Zero option fields fall back to DefaultOptions.
func New(e embed.Embedder, open semantic.Opener, g generate.Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = def.SystemPrompt
	}
	return &Service{embedder: e, open: open, generator: g, opts: opts, logger: logger}
}

// WithMetrics records outcomes and latency on m.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// WithNotifier publishes an event after every successful assessment.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notify = n
	return s
}

// Assess returns the structured recommendation for query, based on the k
// most similar stored cases. k <= 0 uses the configured default.
func (s *Service) Assess(ctx context.Context, query string, k int) (*domain.AssessmentResponse, error) {
	res, err := s.AssessDetailed(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return &res.Response, nil
}

// AssessDetailed is Assess that also returns the retrieved cases and the raw
// completion text.
func (s *Service) AssessDetailed(ctx context.Context, query string, k int) (res *Result, err error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("assess: %w", err)
	}
	if k <= 0 {
		k = s.opts.TopK
	}

	ctx, span := otel.Tracer("assess").Start(ctx, "assess")
	defer span.End()
	span.SetAttributes(attribute.Int("assess.top_k", k), attribute.Int("assess.query_len", len(query)))

	start := time.Now()
	s.logger.Info("assess start", "query_len", len(query), "top_k", k)
	defer func() {
		s.metrics.observe(start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("assess failed", "error", err, "duration", time.Since(start))
		}
	}()

	store, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("assess: open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			s.logger.Warn("assess: close store", "error", cerr)
		}
	}()

	var (
		vec      []float32
		cases    []domain.SimilarityResult
		messages []generate.Message
		raw      string
		resp     domain.AssessmentResponse
	)
	steps := []struct {
		state State
		run   func(context.Context) error
	}{
		{EmbeddingQuery, func(ctx context.Context) (err error) {
			vec, err = s.embedder.Embed(ctx, query)
			return err
		}},
		{RetrievingSimilar, func(ctx context.Context) (err error) {
			cases, err = store.QueryTopK(ctx, vec, k)
			if len(cases) > k {
				cases = cases[:k]
			}
			return err
		}},
		{AssemblingPrompt, func(context.Context) error {
			messages = BuildMessages(s.opts.SystemPrompt, query, cases)
			return nil
		}},
		{Generating, func(ctx context.Context) (err error) {
			raw, err = s.generator.Generate(ctx, generate.Request{
				Model:       s.opts.Model,
				Messages:    messages,
				Temperature: s.opts.Temperature,
				MaxTokens:   s.opts.MaxTokens,
			})
			return err
		}},
		{ParsingResponse, func(context.Context) (err error) {
			resp, err = ParseResponse(raw)
			return err
		}},
	}
	for _, step := range steps {
		if err := s.run(ctx, step.state, step.run); err != nil {
			return nil, err
		}
	}

	res = &Result{Response: resp, Cases: cases, Raw: raw, Duration: time.Since(start)}
	s.logger.Info("assess done",
		"cases", len(cases),
		"decision", resp.UnderwritingDecision,
		"risk_class", resp.RiskClass,
		"duration", res.Duration,
	)
	s.publish(ctx, query, k, res)
	return res, nil
}

// run executes one step inside its own span.
func (s *Service) run(ctx context.Context, state State, f func(context.Context) error) error {
	ctx, span := otel.Tracer("assess").Start(ctx, "assess."+state.String())
	defer span.End()
	s.logger.Debug("assess step", "state", state)
	if err := f(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StageError{State: state, Err: err}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, query string, k int, res *Result) {
	if s.notify == nil {
		return
	}
	ids := make([]int64, len(res.Cases))
	for i, c := range res.Cases {
		ids[i] = c.PolicyID
	}
	ev := events.AssessmentEvent{
		Query:      query,
		K:          k,
		Retrieved:  len(res.Cases),
		PolicyIDs:  ids,
		Response:   res.Response,
		DurationMS: res.Duration.Milliseconds(),
		At:         time.Now().UTC(),
	}
	if err := s.notify.AssessmentCompleted(ctx, ev); err != nil {
		s.logger.Warn("assess: publish event", "error", err)
	}
}
