package domain

// Column names of the case dataset, in file order.
const (
	ColDocument             = "document"
	ColDriverID             = "driver_id"
	ColVehicleID            = "vehicle_id"
	ColPolicyID             = "policy_id"
	ColUnderwritingDecision = "underwriting_decision"
	ColRiskClass            = "risk_class"
	ColReasonForDecline     = "reason_for_decline"
	ColContent              = "content"
	ColTokens               = "tokens"
	ColEmbeddings           = "embeddings"
)

// CaseColumns lists the required columns of the input dataset.
var CaseColumns = []string{
	ColDocument, ColDriverID, ColVehicleID, ColPolicyID,
	ColUnderwritingDecision, ColRiskClass, ColReasonForDecline, ColContent,
}

// EmbeddingColumns lists the columns of the embeddings dataset: one row per
// chunk rather than per record.
var EmbeddingColumns = append(append([]string{}, CaseColumns...), ColTokens, ColEmbeddings)
