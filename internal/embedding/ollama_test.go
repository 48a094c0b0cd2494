// Package embedding_test contains tests for embedding clients.
package embedding_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raphaelgruber/agriassist/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaClientDefaults(t *testing.T) {
	client, err := embedding.NewOllamaClient(embedding.Config{})
	require.NoError(t, err)
	assert.Equal(t, embedding.DefaultOllamaModel, client.Model())
	assert.Equal(t, embedding.DefaultOllamaDimension, client.Dimension())
}

func TestNewOllamaClientExplicitHost(t *testing.T) {
	client, err := embedding.NewOllamaClient(embedding.Config{OllamaHost: "http://ollama.internal:11434", Model: "nomic-embed-text", ExpectedDimension: 768})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", client.Model())
	assert.Equal(t, 768, client.Dimension())
}

func TestNewOllamaClientBadHost(t *testing.T) {
	_, err := embedding.NewOllamaClient(embedding.Config{OllamaHost: "http://bad host:11434"})
	assert.Error(t, err)
}

func TestOllamaEmbedBatchEmpty(t *testing.T) {
	client, err := embedding.NewOllamaClient(embedding.Config{})
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{})
	require.NoError(t, err, "empty batch must not reach the server")
	assert.Empty(t, vectors)
}

func TestOllamaEmbedBatchChunks(t *testing.T) {
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sizes = append(sizes, len(req.Input))

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{1, 0, 0, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embeddings})
	}))
	defer srv.Close()

	client, err := embedding.NewOllamaClient(embedding.Config{OllamaHost: srv.URL, ExpectedDimension: 4, BatchSize: 2})
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, []int{2, 2, 1}, sizes)

	wrongDim, err := embedding.NewOllamaClient(embedding.Config{OllamaHost: srv.URL, ExpectedDimension: 8})
	require.NoError(t, err)
	_, err = wrongDim.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     embedding.Config
		model   string
		wantErr bool
	}{
		{"default provider is ollama", embedding.Config{}, embedding.DefaultOllamaModel, false},
		{"ollama", embedding.Config{Provider: embedding.ProviderOllama, Model: "mxbai-embed-large", ExpectedDimension: 1024}, "mxbai-embed-large", false},
		{"openai", embedding.Config{Provider: embedding.ProviderOpenAI, APIKey: "sk-test"}, embedding.DefaultOpenAIModel, false},
		{"openai without key", embedding.Config{Provider: embedding.ProviderOpenAI}, "", true},
		{"azure without endpoint", embedding.Config{Provider: embedding.ProviderAzure, APIKey: "k"}, "", true},
		{"azure", embedding.Config{Provider: embedding.ProviderAzure, APIKey: "k", BaseURL: "https://example.openai.azure.com", Model: "embed-deploy"}, "embed-deploy", false},
		{"voyage", embedding.Config{Provider: embedding.ProviderVoyage, APIKey: "pa-test"}, embedding.DefaultVoyageModel, false},
		{"local", embedding.Config{Provider: embedding.ProviderLocal, ExpectedDimension: 64}, "feature-hashing", false},
		{"unknown", embedding.Config{Provider: "word2vec"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := embedding.New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.model, e.Model())
		})
	}
}

func TestOllamaEmbedSimilarity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := embedding.NewOllamaClient(embedding.Config{})
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(ctx, []string{
		"How do I control aphids on mustard crops?",
		"What is the treatment for aphid attack in mustard?",
		"Which bank offers the cheapest home loan?",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Len(t, v, client.Dimension(), "embedding %d dimension", i)
	}

	related := cosineSimilarity(vectors[0], vectors[1])
	unrelated := cosineSimilarity(vectors[0], vectors[2])
	t.Logf("related=%.4f unrelated=%.4f", related, unrelated)
	assert.Greater(t, related, unrelated)
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
