package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings/voyageai"
)

const (
	// DefaultVoyageModel is the default Voyage AI embedding model.
	DefaultVoyageModel = "voyage-3"

	// DefaultVoyageDimension is the dimension for voyage-3.
	DefaultVoyageDimension = 1024

	// defaultVoyageBatchSize is the Voyage API limit on inputs per request.
	defaultVoyageBatchSize = 128
)

// VoyageClient implements Embedder using Voyage AI. Questions are embedded
// with the "query" input type and advisories with "document".
type VoyageClient struct {
	embedder  *voyageai.VoyageAI
	model     string
	dimension int
}

// Compile-time check that VoyageClient implements Embedder.
var _ Embedder = (*VoyageClient)(nil)

// NewVoyageClient creates a Voyage AI embedding client.
// If cfg.Model is empty, uses DefaultVoyageModel (voyage-3).
// If cfg.ExpectedDimension is 0, uses DefaultVoyageDimension (1024).
func NewVoyageClient(cfg Config) (*VoyageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voyage embedding provider requires API key")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultVoyageModel
	}
	dimension := cfg.ExpectedDimension
	if dimension == 0 {
		dimension = DefaultVoyageDimension
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > defaultVoyageBatchSize {
		batchSize = defaultVoyageBatchSize
	}

	opts := []voyageai.Option{
		voyageai.WithToken(cfg.APIKey),
		voyageai.WithModel(model),
		voyageai.WithBatchSize(batchSize),
		voyageai.WithStripNewLines(false),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, voyageai.WithClient(*cfg.HTTPClient))
	}

	embedder, err := voyageai.NewVoyageAI(opts...)
	if err != nil {
		return nil, fmt.Errorf("create voyage embedder: %w", err)
	}

	return &VoyageClient{
		embedder:  embedder,
		model:     model,
		dimension: dimension,
	}, nil
}

// Model returns the configured embedding model name.
func (c *VoyageClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *VoyageClient) Dimension() int {
	return c.dimension
}

// Embed generates a query embedding for text.
func (c *VoyageClient) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		slog.Warn("embedding failed", "model", c.model, "text_len", len(text), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(vector) != c.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)", len(vector), c.dimension, c.model)
	}
	return vector, nil
}

// EmbedBatch generates document embeddings for multiple texts.
func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	return checkBatch(vectors, len(texts), c.dimension)
}
