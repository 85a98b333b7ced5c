// Package embed adapts a remote embedding service to the order-preserving
// Embedder used by ingestion and assessment.
package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/WessleyAI/motor-risk/engine/domain"
)

// Embedder produces embeddings for single texts and batches. Output position
// i of EmbedBatch corresponds to input position i.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend is a remote embedding API that accepts a whole batch per call.
type Backend interface {
	CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// Adapter implements Embedder on top of a Backend. It never retries.
type Adapter struct {
	backend Backend
	model   string
}

// New creates an Adapter for the given model.
func New(backend Backend, model string) *Adapter {
	return &Adapter{backend: backend, model: model}
}

// Normalize replaces newlines with spaces.
func Normalize(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}

// Embed embeds a single text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one round-trip. An empty batch makes no call.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = Normalize(t)
	}
	out, err := a.backend.CreateEmbeddings(ctx, a.model, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(out) != len(inputs) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs: %w", len(out), len(inputs), domain.ErrLengthMismatch)
	}
	return out, nil
}
