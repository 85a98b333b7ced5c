// Package ollama adapts the Ollama API client to the embedding and
// generation interfaces, covering batch embeddings and non-streaming chat.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/WessleyAI/motor-risk/engine/generate"
	"github.com/ollama/ollama/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// jsonFormat asks Ollama to constrain the reply to valid JSON.
var jsonFormat = json.RawMessage(`"json"`)

// Client talks to an Ollama server.
type Client struct {
	api *api.Client
}

// NewClient creates an Ollama client for baseURL. A zero timeout disables
// the client timeout and leaves cancellation to the context.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse url %q: %w", baseURL, err)
	}
	hc := &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &Client{api: api.NewClient(u, hc)}, nil
}

// CreateEmbeddings embeds inputs in one /api/embed call.
func (c *Client) CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return resp.Embeddings, nil
}

// Generate implements generate.Generator via /api/chat with JSON output.
func (c *Client) Generate(ctx context.Context, req generate.Request) (string, error) {
	stream := false
	msgs := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}

	var content string
	err := c.api.Chat(ctx, &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &stream,
		Format:   jsonFormat,
		Options:  opts,
	}, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return content, nil
}
