package tokenizer

import "github.com/WessleyAI/motor-risk/engine/domain"

// CostEstimator prices embedding calls at a flat rate per thousand tokens.
type CostEstimator struct {
	PerThousand float64
}

// EmbeddingCost returns the estimated cost of embedding tokens tokens.
func (c CostEstimator) EmbeddingCost(tokens int) float64 {
	return float64(tokens) / 1000 * c.PerThousand
}

// TotalTokens sums the token counts of every record with non-empty content.
func TotalTokens(counter Counter, records []domain.CaseRecord) int {
	total := 0
	for _, r := range records {
		if r.Content == "" {
			continue
		}
		total += counter.Count(r.Content)
	}
	return total
}

// TotalCost estimates the cost of embedding the content of every record.
func (c CostEstimator) TotalCost(counter Counter, records []domain.CaseRecord) float64 {
	return c.EmbeddingCost(TotalTokens(counter, records))
}
