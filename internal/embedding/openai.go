package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the dimension for text-embedding-3-small.
	DefaultOpenAIDimension = 1536

	// DefaultAzureAPIVersion is the Azure OpenAI API version used when none is configured.
	DefaultAzureAPIVersion = "2024-12-01-preview"

	// DefaultBatchSize matches the provider-side limit on inputs per request.
	DefaultBatchSize = 1000
)

// OpenAIClient implements Embedder with langchaingo's OpenAI client,
// covering both api.openai.com (or compatible servers) and Azure deployments.
type OpenAIClient struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

// Compile-time check that OpenAIClient implements Embedder.
var _ Embedder = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI or Azure OpenAI embedding client.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s embedding provider requires API key", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dimension := cfg.ExpectedDimension
	if dimension == 0 {
		dimension = DefaultOpenAIDimension
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(model),
	}
	if cfg.Provider == ProviderAzure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure embedding provider requires endpoint")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = DefaultAzureAPIVersion
		}
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(apiVersion),
			openai.WithModel(model),
		)
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return &OpenAIClient{
		embedder:  embedder,
		model:     model,
		dimension: dimension,
	}, nil
}

// Model returns the embedding model (or Azure deployment) name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *OpenAIClient) Dimension() int {
	return c.dimension
}

// Embed generates an embedding vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	slog.Debug("embedding text", "model", c.model, "text_len", textLen)

	start := time.Now()
	vector, err := c.embedder.EmbedQuery(ctx, text)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("embedding failed", "model", c.model, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(vector) != c.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d (model: %s)", len(vector), c.dimension, c.model)
	}

	slog.Debug("embedding complete", "model", c.model, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	return checkBatch(vectors, len(texts), c.dimension)
}
