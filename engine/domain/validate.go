package domain

import (
	"strings"
)

// ValidateCaseRecord checks the fields every stored case must carry. Content
// may be empty: such records simply produce no chunks.
func ValidateCaseRecord(rec CaseRecord) error {
	if strings.TrimSpace(rec.Document) == "" {
		return NewValidationError(ColDocument, rec.Document, ErrMissingField)
	}
	if strings.TrimSpace(rec.UnderwritingDecision) == "" {
		return NewValidationError(ColUnderwritingDecision, rec.UnderwritingDecision, ErrMissingField)
	}
	if strings.TrimSpace(rec.RiskClass) == "" {
		return NewValidationError(ColRiskClass, rec.RiskClass, ErrMissingField)
	}
	return nil
}

// ValidateQuery rejects blank assessment prompts.
func ValidateQuery(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("query", text, ErrEmptyQuery)
	}
	return nil
}

// ValidateResponse checks that an assessment carries the fields a decision
// needs. A decline reason may legitimately be "N/A", but not absent; absence
// is detected by the parser, so only the decision and class are checked here.
func ValidateResponse(r AssessmentResponse) error {
	if strings.TrimSpace(r.UnderwritingDecision) == "" {
		return NewValidationError(ColUnderwritingDecision, r.UnderwritingDecision, ErrMalformedResponse)
	}
	if strings.TrimSpace(r.RiskClass) == "" {
		return NewValidationError(ColRiskClass, r.RiskClass, ErrMalformedResponse)
	}
	return nil
}
