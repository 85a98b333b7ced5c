package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/WessleyAI/motor-risk/engine/domain"
)

// header maps column names to positions and checks required columns.
type header map[string]int

func readHeader(r *csv.Reader, required []string) (header, error) {
	names, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ingest: empty input: %w", domain.ErrMissingColumn)
		}
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}
	h := make(header, len(names))
	for i, n := range names {
		h[strings.TrimSpace(strings.TrimPrefix(n, "\uFEFF"))] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("ingest: column %q: %w", col, domain.ErrMissingColumn)
		}
	}
	return h, nil
}

func (h header) int64(row []string, col string) (int64, error) {
	v := strings.TrimSpace(row[h[col]])
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError(col, v, domain.ErrInvalidInteger)
	}
	return n, nil
}

func (h header) caseRecord(row []string) (domain.CaseRecord, error) {
	rec := domain.CaseRecord{
		Document:             row[h[domain.ColDocument]],
		UnderwritingDecision: row[h[domain.ColUnderwritingDecision]],
		RiskClass:            row[h[domain.ColRiskClass]],
		ReasonForDecline:     row[h[domain.ColReasonForDecline]],
		Content:              row[h[domain.ColContent]],
	}
	var err error
	if rec.DriverID, err = h.int64(row, domain.ColDriverID); err != nil {
		return rec, err
	}
	if rec.VehicleID, err = h.int64(row, domain.ColVehicleID); err != nil {
		return rec, err
	}
	if rec.PolicyID, err = h.int64(row, domain.ColPolicyID); err != nil {
		return rec, err
	}
	return rec, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	return cr
}

// ReadCases reads the case dataset. Columns are matched by header name; a
// row that fails to parse aborts the read with a *domain.RowError.
func ReadCases(r io.Reader) ([]domain.CaseRecord, error) {
	cr := newReader(r)
	h, err := readHeader(cr, domain.CaseColumns)
	if err != nil {
		return nil, err
	}
	var out []domain.CaseRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read cases: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := h.caseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("ingest: read cases: %w", &domain.RowError{Line: line, Err: err})
		}
		out = append(out, rec)
	}
}

// FormatVector renders v as "[f1,f2,...]".
func FormatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector parses the output of FormatVector.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("vector %q: missing brackets", truncate(s))
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

// WriteEmbeddings writes one row per chunk with the case columns plus
// tokens and embeddings.
func WriteEmbeddings(w io.Writer, chunks []domain.EmbeddedChunk) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.EmbeddingColumns); err != nil {
		return fmt.Errorf("ingest: write header: %w", err)
	}
	for i, c := range chunks {
		row := []string{
			c.Document,
			strconv.FormatInt(c.DriverID, 10),
			strconv.FormatInt(c.VehicleID, 10),
			strconv.FormatInt(c.PolicyID, 10),
			c.UnderwritingDecision,
			c.RiskClass,
			c.ReasonForDecline,
			c.Content,
			strconv.Itoa(c.Tokens),
			FormatVector(c.Embedding),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("ingest: write chunk %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("ingest: flush embeddings: %w", err)
	}
	return nil
}

// ReadEmbeddings reads a file produced by WriteEmbeddings.
func ReadEmbeddings(r io.Reader) ([]domain.EmbeddedChunk, error) {
	cr := newReader(r)
	h, err := readHeader(cr, domain.EmbeddingColumns)
	if err != nil {
		return nil, err
	}
	var out []domain.EmbeddedChunk
	index := map[string]int{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read embeddings: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rowErr := func(err error) error {
			return fmt.Errorf("ingest: read embeddings: %w", &domain.RowError{Line: line, Err: err})
		}

		rec, err := h.caseRecord(row)
		if err != nil {
			return nil, rowErr(err)
		}
		tokens, err := h.int64(row, domain.ColTokens)
		if err != nil {
			return nil, rowErr(err)
		}
		vec, err := ParseVector(row[h[domain.ColEmbeddings]])
		if err != nil {
			return nil, rowErr(err)
		}

		// chunk index restarts for every source record
		key := recordKey(rec)
		out = append(out, domain.EmbeddedChunk{
			Chunk:     domain.Chunk{CaseRecord: rec, Index: index[key], Tokens: int(tokens)},
			Embedding: vec,
		})
		index[key]++
	}
}

// recordKey identifies the source record a chunk was cut from.
func recordKey(rec domain.CaseRecord) string {
	return fmt.Sprintf("%s|%d|%d|%d", rec.Document, rec.DriverID, rec.VehicleID, rec.PolicyID)
}
