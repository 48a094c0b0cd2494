// Package index provides an in-memory cosine-similarity vector index over
// encoded advisory documents, with an on-disk snapshot format.
package index

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/raphaelgruber/agriassist/internal/models"
)

// MetricCosine is the only similarity metric the index supports.
const MetricCosine = "cosine"

// DefaultBatchSize is the number of documents sent per embedding request during Build.
const DefaultBatchSize = 1000

// BatchEmbedder is the subset of embedding.Embedder that Build needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// Hit is one search result.
type Hit struct {
	Document models.EncodedDocument
	Score    float32
	Position int // insertion order in the index
}

// Entry is a stored document with its unit-length vector.
type Entry struct {
	Position int
	Document models.EncodedDocument
	Vector   []float32
}

// Index holds documents and their unit-length embeddings.
// It is read-only after construction and safe for concurrent searches.
type Index struct {
	model     string
	dimension int
	docs      []models.EncodedDocument
	vectors   [][]float32
}

type buildOptions struct {
	batchSize  int
	onProgress func(done, total int)
	logger     *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithBatchSize sets the number of documents per embedding request.
func WithBatchSize(n int) BuildOption {
	return func(o *buildOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithProgress registers a callback invoked after each embedded batch.
func WithProgress(fn func(done, total int)) BuildOption {
	return func(o *buildOptions) {
		o.onProgress = fn
	}
}

// WithLogger sets the logger used during Build.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build embeds all documents in batches and returns the index.
// Any failed batch aborts the build with ErrEmbeddingProvider; no partial index is returned.
func Build(ctx context.Context, docs []models.EncodedDocument, embedder BatchEmbedder, opts ...BuildOption) (*Index, error) {
	o := buildOptions{batchSize: DefaultBatchSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	dimension := embedder.Dimension()
	vectors := make([][]float32, 0, len(docs))
	total := len(docs)

	for start := 0; start < total; start += o.batchSize {
		end := min(start+o.batchSize, total)

		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Content)
		}

		batch, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %w", ErrEmbeddingProvider, start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: batch %d-%d: got %d vectors for %d documents",
				ErrEmbeddingProvider, start, end, len(batch), len(texts))
		}
		for i, v := range batch {
			if len(v) != dimension {
				return nil, fmt.Errorf("%w: document %d: %w: got %d, want %d",
					ErrEmbeddingProvider, start+i, ErrDimensionMismatch, len(v), dimension)
			}
		}
		vectors = append(vectors, batch...)

		o.logger.Debug("embedded batch", "start", start, "end", end, "total", total)
		if o.onProgress != nil {
			o.onProgress(end, total)
		}
	}

	o.logger.Info("index built", "documents", total, "model", embedder.Model(), "dimension", dimension)
	return FromVectors(embedder.Model(), dimension, docs, vectors)
}

// FromVectors assembles an index from precomputed vectors, normalizing them.
func FromVectors(model string, dimension int, docs []models.EncodedDocument, vectors [][]float32) (*Index, error) {
	if len(docs) != len(vectors) {
		return nil, fmt.Errorf("document/vector count mismatch: %d documents, %d vectors", len(docs), len(vectors))
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), dimension)
		}
		normalized[i] = normalize(v)
	}

	return &Index{
		model:     model,
		dimension: dimension,
		docs:      slices.Clone(docs),
		vectors:   normalized,
	}, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Dimension returns the embedding dimension.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Model returns the embedding model the index was built with.
func (ix *Index) Model() string {
	return ix.model
}

// Entries returns all stored documents with their vectors in insertion order.
func (ix *Index) Entries() []Entry {
	entries := make([]Entry, len(ix.docs))
	for i := range ix.docs {
		entries[i] = Entry{Position: i, Document: ix.docs[i], Vector: ix.vectors[i]}
	}
	return entries
}

// Search returns up to k documents ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("search: %w: got %d, want %d", ErrDimensionMismatch, len(query), ix.dimension)
	}
	if k <= 0 || len(ix.docs) == 0 {
		return []Hit{}, nil
	}

	q := normalize(query)
	hits := make([]Hit, len(ix.docs))
	for i, v := range ix.vectors {
		hits[i] = Hit{Document: ix.docs[i], Score: dot(q, v), Position: i}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// normalize returns a unit-length copy of v. Zero vectors stay zero.
func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
