package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const (
	// ProviderLocal embeds text in-process with feature hashing. It needs no
	// server and is meant for offline use and demos, not for quality retrieval.
	ProviderLocal ProviderType = "local"

	// DefaultLocalDimension is the vector size of the hashing embedder.
	DefaultLocalDimension = 1024

	localModelName = "feature-hashing"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {}, "for": {}, "to": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "with": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"from": {}, "what": {}, "which": {}, "how": {}, "do": {}, "does": {}, "i": {}, "my": {},
	"should": {}, "can": {}, "about": {}, "asked": {}, "question": {}, "answer": {},
	"recommended": {}, "advisory": {}, "full": {}, "context": {},
}

// HashingClient implements Embedder with the hashing trick over word tokens:
// each non-stopword token adds a signed unit to one bucket, then the vector
// is L2-normalized.
type HashingClient struct {
	dimension int
}

// Compile-time check that HashingClient implements Embedder.
var _ Embedder = (*HashingClient)(nil)

// NewHashingClient creates a hashing embedder. dimension 0 uses DefaultLocalDimension.
func NewHashingClient(dimension int) *HashingClient {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &HashingClient{dimension: dimension}
}

// Model returns the embedder name.
func (c *HashingClient) Model() string {
	return localModelName
}

// Dimension returns the vector size.
func (c *HashingClient) Dimension() int {
	return c.dimension
}

// Embed hashes the tokens of text into a normalized vector.
func (c *HashingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.vector(text), nil
}

// EmbedBatch embeds each text independently.
func (c *HashingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = c.vector(t)
	}
	return out, nil
}

func (c *HashingClient) vector(text string) []float32 {
	acc := make([]float64, c.dimension)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(c.dimension))
		if sum>>63 == 1 {
			acc[bucket]--
		} else {
			acc[bucket]++
		}
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	vec := make([]float32, c.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, x := range acc {
		vec[i] = float32(x / norm)
	}
	return vec
}
