package assess

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/engine/generate"
)

const contextHeader = "Based on similar cases, here are relevant risk assessments with additional vehicle details:\n"

// BuildMessages assembles the system instruction, the fenced query and an
// assistant turn listing each retrieved case, numbered from 1.
func BuildMessages(system, query string, cases []domain.SimilarityResult) []generate.Message {
	return []generate.Message{
		{Role: generate.RoleSystem, Content: system},
		{Role: generate.RoleUser, Content: "```" + query + "```"},
		{Role: generate.RoleAssistant, Content: caseContext(cases)},
	}
}

func caseContext(cases []domain.SimilarityResult) string {
	var b strings.Builder
	b.WriteString(contextHeader)
	for i, c := range cases {
		fmt.Fprintf(&b, "%d. Case Details: %s\n", i+1, c.Content)
	}
	return b.String()
}

// Response keys.
const (
	keyDecision = "underwriting_decision"
	keyClass    = "risk_class"
	keyReason   = "reason_for_decline"
	keyVehicle  = "vehicle_information"
)

var requiredKeys = []string{keyDecision, keyClass, keyReason, keyVehicle}

// ParseResponse decodes a completion into an assessment. The text must be a
// JSON object, optionally inside a ```json fence, carrying all four keys
// with non-null values. Scalar values are accepted as text. Nothing is
// repaired.
func ParseResponse(text string) (domain.AssessmentResponse, error) {
	var out domain.AssessmentResponse

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(text)), &fields); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	for _, k := range requiredKeys {
		if raw, ok := fields[k]; !ok || isNull(raw) {
			return out, domain.NewValidationError(k, "", domain.ErrMalformedResponse)
		}
	}

	var err error
	if out.UnderwritingDecision, err = scalar(keyDecision, fields[keyDecision]); err != nil {
		return out, err
	}
	if out.RiskClass, err = scalar(keyClass, fields[keyClass]); err != nil {
		return out, err
	}
	if out.ReasonForDecline, err = scalar(keyReason, fields[keyReason]); err != nil {
		return out, err
	}
	if out.VehicleInformation, err = vehicle(fields[keyVehicle]); err != nil {
		return out, err
	}
	if err := domain.ValidateResponse(out); err != nil {
		return out, err
	}
	return out, nil
}

func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl != -1 && !strings.ContainsAny(t[:nl], "{[") {
		t = t[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// scalar renders a JSON string, number or bool as text. null is empty.
func scalar(key string, raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", domain.NewValidationError(key, string(raw), domain.ErrMalformedResponse)
		}
		return strings.TrimSpace(s), nil
	case '{', '[':
		return "", domain.NewValidationError(key, string(raw), domain.ErrMalformedResponse)
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", domain.NewValidationError(key, string(raw), domain.ErrMalformedResponse)
		}
		return fmt.Sprint(v), nil
	}
}

// vehicle accepts either an object of pricing fields or a free-text summary.
// Either form must carry at least one non-blank value.
func vehicle(raw json.RawMessage) (domain.VehicleInformation, error) {
	v, err := vehicleFields(raw)
	if err != nil {
		return v, err
	}
	if v == (domain.VehicleInformation{}) {
		return v, domain.NewValidationError(keyVehicle, string(bytes.TrimSpace(raw)), domain.ErrMalformedResponse)
	}
	return v, nil
}

func vehicleFields(raw json.RawMessage) (domain.VehicleInformation, error) {
	var v domain.VehicleInformation
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] != '{' {
		s, err := scalar(keyVehicle, raw)
		v.Description = s
		return v, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return v, domain.NewValidationError(keyVehicle, string(raw), domain.ErrMalformedResponse)
	}
	targets := []struct {
		key string
		dst *string
	}{
		{"description", &v.Description},
		{"price", &v.Price},
		{"prepared_price", &v.PreparedPrice},
		{"maintenance_cost", &v.MaintenanceCost},
	}
	for _, t := range targets {
		s, err := scalar(keyVehicle+"."+t.key, fields[t.key])
		if err != nil {
			return v, err
		}
		*t.dst = s
	}
	return v, nil
}
