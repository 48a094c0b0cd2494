package embedding_test

import (
	"context"
	"math"
	"testing"

	"github.com/raphaelgruber/agriassist/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingClientDeterministic(t *testing.T) {
	client := embedding.NewHashingClient(0)
	assert.Equal(t, embedding.DefaultLocalDimension, client.Dimension())

	ctx := context.Background()
	a, err := client.Embed(ctx, "Apply neem oil against aphids")
	require.NoError(t, err)
	b, err := client.Embed(ctx, "Apply neem oil against aphids")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashingClientNormalized(t *testing.T) {
	client := embedding.NewHashingClient(256)
	vec, err := client.Embed(context.Background(), "Wheat rust management in Punjab")
	require.NoError(t, err)
	require.Len(t, vec, 256)

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashingClientStopwordsOnly(t *testing.T) {
	client := embedding.NewHashingClient(64)
	vec, err := client.Embed(context.Background(), "what is the")
	require.NoError(t, err)
	for _, x := range vec {
		assert.Zero(t, x)
	}
}

func TestHashingClientCaseInsensitive(t *testing.T) {
	client := embedding.NewHashingClient(128)
	ctx := context.Background()

	vectors, err := client.EmbedBatch(ctx, []string{"PADDY Transplanting", "paddy transplanting"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, vectors[0], vectors[1])
}

func TestHashingClientCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := embedding.NewHashingClient(8).EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
