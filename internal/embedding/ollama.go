package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	// DefaultOllamaModel is the embedding model that produces 384-dimensional vectors.
	DefaultOllamaModel = "all-minilm:l6-v2"

	// DefaultOllamaDimension is the dimension for all-minilm:l6-v2.
	DefaultOllamaDimension = 384

	// defaultOllamaBatchSize keeps a single /api/embed request well inside
	// the server's request timeout on CPU-only hosts.
	defaultOllamaBatchSize = 256
)

// OllamaClient implements Embedder using a local Ollama server.
type OllamaClient struct {
	client    *api.Client
	model     string
	dimension int
	batchSize int
}

// Compile-time check that OllamaClient implements Embedder.
var _ Embedder = (*OllamaClient)(nil)

// NewOllamaClient creates an Ollama embedding client.
// If cfg.OllamaHost is empty, OLLAMA_HOST is used (defaults to http://localhost:11434).
// If cfg.Model is empty, uses DefaultOllamaModel (all-minilm:l6-v2).
// If cfg.ExpectedDimension is 0, uses DefaultOllamaDimension (384).
func NewOllamaClient(cfg Config) (*OllamaClient, error) {
	client, err := ollamaAPI(cfg.OllamaHost)
	if err != nil {
		return nil, err
	}

	c := &OllamaClient{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.ExpectedDimension,
		batchSize: cfg.BatchSize,
	}
	if c.model == "" {
		c.model = DefaultOllamaModel
	}
	if c.dimension == 0 {
		c.dimension = DefaultOllamaDimension
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultOllamaBatchSize
	}
	return c, nil
}

func ollamaAPI(host string) (*api.Client, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return client, nil
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return api.NewClient(base, http.DefaultClient), nil
}

// Model returns the configured embedding model name.
func (c *OllamaClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *OllamaClient) Dimension() int {
	return c.dimension
}

// Embed generates an embedding vector for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vector := resp.Embeddings[0]
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)",
			len(vector), c.dimension, c.model)
	}
	return vector, nil
}

// EmbedBatch embeds texts in requests of at most batchSize inputs.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += c.batchSize {
		hi := min(lo+c.batchSize, len(texts))

		start := time.Now()
		resp, err := c.client.Embed(ctx, &api.EmbedRequest{
			Model: c.model,
			Input: texts[lo:hi],
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", lo, hi, err)
		}
		batch, err := checkBatch(resp.Embeddings, hi-lo, c.dimension)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", lo, hi, err)
		}
		slog.Debug("embedded batch", "model", c.model, "from", lo, "to", hi, "duration_ms", time.Since(start).Milliseconds())
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// checkBatch verifies count and dimension of a provider batch response.
func checkBatch(vectors [][]float32, want, dimension int) ([][]float32, error) {
	if len(vectors) != want {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), dimension)
		}
	}
	return vectors, nil
}
