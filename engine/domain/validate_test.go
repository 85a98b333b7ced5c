package domain

import (
	"errors"
	"strings"
	"testing"
)

func validRecord() CaseRecord {
	return CaseRecord{
		Document:             "case-001",
		DriverID:             11,
		VehicleID:            22,
		PolicyID:             33,
		UnderwritingDecision: "Approved",
		RiskClass:            "Low",
		ReasonForDecline:     "N/A",
		Content:              "45-year-old driver, clean record, Toyota Corolla.",
	}
}

func TestValidateCaseRecord(t *testing.T) {
	if err := ValidateCaseRecord(validRecord()); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateCaseRecord_EmptyContentAllowed(t *testing.T) {
	rec := validRecord()
	rec.Content = ""
	if err := ValidateCaseRecord(rec); err != nil {
		t.Fatalf("empty content should be accepted, got %v", err)
	}
}

func TestValidateCaseRecord_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*CaseRecord)
		field string
	}{
		{"document", func(r *CaseRecord) { r.Document = " " }, ColDocument},
		{"decision", func(r *CaseRecord) { r.UnderwritingDecision = "" }, ColUnderwritingDecision},
		{"risk class", func(r *CaseRecord) { r.RiskClass = "" }, ColRiskClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mut(&rec)
			err := ValidateCaseRecord(rec)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("expected ErrMissingField, got %v", err)
			}
		})
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery("45-year-old driver, McLaren Speedtail"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateQuery("   \n"); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestValidateResponse(t *testing.T) {
	ok := AssessmentResponse{UnderwritingDecision: "Declined", RiskClass: "High", ReasonForDecline: "Accident history"}
	if err := ValidateResponse(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := ok
	bad.RiskClass = ""
	if err := ValidateResponse(bad); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := NewValidationError("driver_id", "abc", ErrInvalidInteger)
	s := ve.Error()
	if !strings.Contains(s, "driver_id") || !strings.Contains(s, "abc") || !strings.Contains(s, "invalid integer") {
		t.Fatalf("unexpected error string: %s", s)
	}
}

func TestRowError(t *testing.T) {
	err := &RowError{Line: 7, Err: NewValidationError("policy_id", "x", ErrInvalidInteger)}
	if !strings.HasPrefix(err.Error(), "line 7:") {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !errors.Is(err, ErrInvalidInteger) {
		t.Fatal("expected RowError to unwrap to ErrInvalidInteger")
	}
}

func TestEmbeddingColumns(t *testing.T) {
	if len(EmbeddingColumns) != len(CaseColumns)+2 {
		t.Fatalf("unexpected embedding columns: %v", EmbeddingColumns)
	}
	if EmbeddingColumns[len(EmbeddingColumns)-1] != ColEmbeddings {
		t.Fatalf("embeddings must be the last column, got %v", EmbeddingColumns)
	}
}

func TestChunkRecord(t *testing.T) {
	c := Chunk{CaseRecord: validRecord(), Index: 2, Tokens: 9}
	if c.Record().PolicyID != 33 {
		t.Fatalf("unexpected record: %+v", c.Record())
	}
}
