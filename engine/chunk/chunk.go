// Package chunk splits case content into token-bounded chunks.
package chunk

import (
	"strings"

	"github.com/WessleyAI/motor-risk/engine/domain"
	"github.com/WessleyAI/motor-risk/engine/tokenizer"
)

// DefaultMaxTokens is the default per-chunk token budget.
const DefaultMaxTokens = 512

// Chunker splits records whose content exceeds MaxTokens into fixed-size
// word windows. The window size assumes 4/3 tokens per word, so a chunk may
// still exceed MaxTokens for token-dense text.
type Chunker struct {
	MaxTokens int
	Counter   tokenizer.Counter
}

// New creates a Chunker. A non-positive max selects DefaultMaxTokens.
func New(maxTokens int, counter tokenizer.Counter) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Chunker{MaxTokens: maxTokens, Counter: counter}
}

// IdealWordsPerChunk returns floor(maxTokens / (4/3)), never less than 1.
func IdealWordsPerChunk(maxTokens int) int {
	n := maxTokens * 3 / 4
	if n < 1 {
		return 1
	}
	return n
}

// Chunk splits rec into chunks. Content without any words yields no chunks.
func (c *Chunker) Chunk(rec domain.CaseRecord) []domain.Chunk {
	words := strings.Fields(rec.Content)
	if len(words) == 0 {
		return nil
	}

	if n := c.Counter.Count(rec.Content); n <= c.MaxTokens {
		return []domain.Chunk{{CaseRecord: rec, Index: 0, Tokens: n}}
	}

	size := IdealWordsPerChunk(c.MaxTokens)
	out := make([]domain.Chunk, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		text := strings.Join(words[start:end], " ")
		n := c.Counter.Count(text)
		if n == 0 {
			continue
		}
		part := rec
		part.Content = text
		out = append(out, domain.Chunk{CaseRecord: part, Index: len(out), Tokens: n})
	}
	return out
}

// ChunkAll chunks every record, keeping record order and chunk order.
func (c *Chunker) ChunkAll(records []domain.CaseRecord) []domain.Chunk {
	var out []domain.Chunk
	for _, rec := range records {
		out = append(out, c.Chunk(rec)...)
	}
	return out
}
