// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"fmt"
	"net/http"
)

// Embedder defines the interface for text embedding providers.
// Implementations include Ollama (local), OpenAI / Azure OpenAI and Voyage AI (API).
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per text in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// Must match the dimension of any index queried with this embedder.
	Dimension() int
}

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API (or a compatible server).
	ProviderOpenAI ProviderType = "openai"

	// ProviderAzure uses an Azure OpenAI embedding deployment.
	ProviderAzure ProviderType = "azure"

	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"
)

// Config holds configuration for creating an Embedder.
type Config struct {
	// Provider specifies which embedding backend to use.
	Provider ProviderType

	// Model is the embedding model name (provider-specific).
	// Ollama: "all-minilm:l6-v2" (384-dim), "nomic-embed-text" (768-dim)
	// OpenAI: "text-embedding-3-small" (1536-dim)
	// Azure: the embedding deployment name
	Model string

	// ExpectedDimension is the required output dimension.
	// Set to 0 to use provider's default.
	ExpectedDimension int

	// BatchSize caps how many texts go into one provider request.
	BatchSize int

	// Ollama-specific (uses OLLAMA_HOST env var if empty)
	OllamaHost string

	// OpenAI / Azure / Voyage
	APIKey     string
	BaseURL    string
	APIVersion string

	// HTTPClient overrides the Voyage transport.
	HTTPClient *http.Client
}

// New creates an Embedder based on the provided configuration.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		// Default to Ollama
		return NewOllamaClient(cfg)

	case ProviderOpenAI, ProviderAzure:
		return NewOpenAIClient(cfg)

	case ProviderVoyage:
		return NewVoyageClient(cfg)

	case ProviderLocal:
		return NewHashingClient(cfg.ExpectedDimension), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
