package ingest

import (
	"time"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/pkg/metrics"
)

// Metrics tracks ingestion progress. A nil *Metrics records nothing.
type Metrics struct {
	Records       *metrics.Counter
	Chunks        *metrics.Counter
	Tokens        *metrics.Counter
	EmbedCalls    *metrics.Counter
	EmbedFailures *metrics.Counter
	EmbedLatency  *metrics.Histogram
	Inserted      *metrics.Counter
	InsertFailed  *metrics.Counter
	EstimatedCost *metrics.FloatGauge
}

// NewMetrics registers the ingestion metrics on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		Records:       reg.Counter("motor_ingest_records_total", "Case records read"),
		Chunks:        reg.Counter("motor_ingest_chunks_total", "Chunks produced"),
		Tokens:        reg.Counter("motor_ingest_tokens_total", "Tokens across produced chunks"),
		EmbedCalls:    reg.Counter(metrics.WithLabels("motor_embed_requests_total", "status", "ok"), "Embedding requests"),
		EmbedFailures: reg.Counter(metrics.WithLabels("motor_embed_requests_total", "status", "error"), "Embedding requests"),
		EmbedLatency:  reg.Histogram("motor_embed_request_seconds", "Embedding request latency", nil),
		Inserted:      reg.Counter("motor_store_inserted_chunks_total", "Chunks committed to the vector store"),
		InsertFailed:  reg.Counter("motor_store_insert_failures_total", "Failed batch inserts"),
		EstimatedCost: reg.FloatGauge("motor_ingest_estimated_cost", "Estimated embedding cost of the last run"),
	}
}

func (m *Metrics) observeChunks(records []domain.CaseRecord, chunks []domain.Chunk) {
	if m == nil {
		return
	}
	m.Records.Add(int64(len(records)))
	m.Chunks.Add(int64(len(chunks)))
	for _, c := range chunks {
		m.Tokens.Add(int64(c.Tokens))
	}
}

func (m *Metrics) observeEmbed(start time.Time, err error) {
	if m == nil {
		return
	}
	m.EmbedLatency.Since(start)
	if err != nil {
		m.EmbedFailures.Inc()
		return
	}
	m.EmbedCalls.Inc()
}

func (m *Metrics) observeInsert(n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.InsertFailed.Inc()
		return
	}
	m.Inserted.Add(int64(n))
}

func (m *Metrics) observeCost(cost float64) {
	if m == nil {
		return
	}
	m.EstimatedCost.Set(cost)
}
