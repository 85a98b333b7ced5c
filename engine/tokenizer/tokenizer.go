// Package tokenizer counts model tokens and estimates embedding spend.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the byte-pair encoding used by the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// Counter reports how many tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(string) int

// Count implements Counter.
func (f CounterFunc) Count(text string) int { return f(text) }

var loaderOnce sync.Once

// Tiktoken counts tokens with a tiktoken encoding. Vocabularies are loaded
// from the embedded offline loader so no network access is needed.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New returns a Tiktoken counter for the named encoding. An empty name
// selects DefaultEncoding.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count implements Counter. The empty string has zero tokens.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}
