// Package events publishes ingest and assessment notifications on NATS.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectAssessmentCompleted = "risk.assessment.completed"
	SubjectIngestCompleted     = "risk.ingest.completed"
)

// AssessmentEvent describes one finished assessment.
type AssessmentEvent struct {
	Query      string                    `json:"query"`
	K          int                       `json:"k"`
	Retrieved  int                       `json:"retrieved"`
	PolicyIDs  []int64                   `json:"policy_ids"`
	Response   domain.AssessmentResponse `json:"response"`
	DurationMS int64                     `json:"duration_ms"`
	At         time.Time                 `json:"at"`
}

// IngestEvent describes one finished insert run.
type IngestEvent struct {
	Source   string    `json:"source"`
	Records  int       `json:"records"`
	Chunks   int       `json:"chunks"`
	Tokens   int       `json:"tokens"`
	Inserted bool      `json:"inserted"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher sends events. A nil *Publisher discards everything.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher wraps an open connection.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// AssessmentCompleted publishes ev.
func (p *Publisher) AssessmentCompleted(ctx context.Context, ev AssessmentEvent) error {
	if p == nil {
		return nil
	}
	return natsutil.Publish(ctx, p.nc, SubjectAssessmentCompleted, ev)
}

// IngestCompleted publishes ev.
func (p *Publisher) IngestCompleted(ctx context.Context, ev IngestEvent) error {
	if p == nil {
		return nil
	}
	return natsutil.Publish(ctx, p.nc, SubjectIngestCompleted, ev)
}

// OnAssessment subscribes handler to assessment events.
func OnAssessment(nc *nats.Conn, log *slog.Logger, handler func(context.Context, AssessmentEvent) error) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, SubjectAssessmentCompleted, log, handler)
}

// OnIngest subscribes handler to ingest events.
func OnIngest(nc *nats.Conn, log *slog.Logger, handler func(context.Context, IngestEvent) error) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, SubjectIngestCompleted, log, handler)
}
