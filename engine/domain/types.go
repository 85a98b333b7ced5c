// Package domain defines the case, chunk and assessment types shared by the
// ingestion and assessment pipelines, together with their validation rules.
package domain

// CaseRecord is one row of the historical motor-insurance case dataset.
// Records are treated as immutable once read.
type CaseRecord struct {
	Document             string `json:"document"`
	DriverID             int64  `json:"driver_id"`
	VehicleID            int64  `json:"vehicle_id"`
	PolicyID             int64  `json:"policy_id"`
	UnderwritingDecision string `json:"underwriting_decision"`
	RiskClass            string `json:"risk_class"`
	ReasonForDecline     string `json:"reason_for_decline"`
	Content              string `json:"content"`
}

// Chunk is a token-bounded slice of a record's content. Every field other
// than Content is copied verbatim from the source record.
type Chunk struct {
	CaseRecord
	Index  int `json:"chunk_index"`
	Tokens int `json:"tokens"`
}

// Record returns the chunk's copy of the source record fields, with Content
// holding the chunk text.
func (c Chunk) Record() CaseRecord { return c.CaseRecord }

// EmbeddedChunk is a chunk paired with the embedding of its content.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// SimilarityResult is a stored case returned by a nearest-neighbour query.
// Distance is the store's metric (cosine distance); lower is closer.
type SimilarityResult struct {
	Content              string  `json:"content"`
	Document             string  `json:"document"`
	PolicyID             int64   `json:"policy_id"`
	UnderwritingDecision string  `json:"underwriting_decision"`
	RiskClass            string  `json:"risk_class"`
	ReasonForDecline     string  `json:"reason_for_decline"`
	Distance             float64 `json:"distance"`
}

// VehicleInformation carries the pricing details of an assessment. Values are
// kept as text since models answer with currency amounts and ranges.
type VehicleInformation struct {
	Description     string `json:"description"`
	Price           string `json:"price"`
	PreparedPrice   string `json:"prepared_price"`
	MaintenanceCost string `json:"maintenance_cost"`
}

// AssessmentResponse is the structured underwriting recommendation.
type AssessmentResponse struct {
	UnderwritingDecision string             `json:"underwriting_decision"`
	RiskClass            string             `json:"risk_class"`
	ReasonForDecline     string             `json:"reason_for_decline"`
	VehicleInformation   VehicleInformation `json:"vehicle_information"`
}
