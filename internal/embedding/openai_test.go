package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/raphaelgruber/agriassist/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingsServer answers OpenAI-style /embeddings requests with
// vectors of the given dimension whose first component is the input index.
func fakeEmbeddingsServer(t *testing.T, dimension int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}

		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(payload.Input))
		for i := range payload.Input {
			vec := make([]float32, dimension)
			vec[0] = float32(i + 1)
			data[i] = item{Object: "embedding", Embedding: vec, Index: i}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  payload.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbed(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingsServer(t, 8, &requests)
	defer srv.Close()

	client, err := embedding.NewOpenAIClient(embedding.Config{
		Provider:          embedding.ProviderOpenAI,
		APIKey:            "sk-test",
		BaseURL:           srv.URL,
		ExpectedDimension: 8,
	})
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "When should paddy be transplanted?")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, float32(1), vec[0])
}

func TestOpenAIEmbedBatchSplitsRequests(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingsServer(t, 4, &requests)
	defer srv.Close()

	client, err := embedding.NewOpenAIClient(embedding.Config{
		Provider:          embedding.ProviderOpenAI,
		APIKey:            "sk-test",
		BaseURL:           srv.URL,
		ExpectedDimension: 4,
		BatchSize:         2,
	})
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, int32(2), requests.Load(), "three texts with batch size two need two requests")
}

func TestOpenAIDimensionMismatch(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingsServer(t, 4, &requests)
	defer srv.Close()

	client, err := embedding.NewOpenAIClient(embedding.Config{
		Provider:          embedding.ProviderOpenAI,
		APIKey:            "sk-test",
		BaseURL:           srv.URL,
		ExpectedDimension: 16,
	})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")

	_, err = client.EmbedBatch(context.Background(), []string{"x", "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := embedding.NewOpenAIClient(embedding.Config{
		Provider: embedding.ProviderOpenAI,
		APIKey:   "sk-test",
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
}
