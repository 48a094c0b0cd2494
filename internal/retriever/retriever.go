// Package retriever finds the advisory documents most similar to a question.
package retriever

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/agriassist/internal/index"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
)

// DefaultK is the number of documents retrieved per question.
const DefaultK = 3

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is a vector backend: the in-memory index or SurrealDB.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]index.Hit, error)
}

// Retriever embeds questions and searches a vector backend.
// It is safe for concurrent use when its backend is.
type Retriever struct {
	embedder QueryEmbedder
	searcher Searcher
	k        int
	minScore float32
	filter   bool
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithDefaultK sets the k used when Search is called with k <= 0.
func WithDefaultK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithMinScore drops hits whose similarity is not above score.
// Without it every hit the backend returns is kept.
func WithMinScore(score float32) Option {
	return func(r *Retriever) {
		r.minScore = score
		r.filter = true
	}
}

// WithMetrics records embedding and search timings.
func WithMetrics(mc *metrics.Collector) Option {
	return func(r *Retriever) {
		r.metrics = mc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Retriever.
func New(embedder QueryEmbedder, searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		searcher: searcher,
		k:        DefaultK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultK returns the k used when Search is called with k <= 0.
func (r *Retriever) DefaultK() int {
	return r.k
}

// Search returns at most k documents in descending similarity order.
// Provider and backend failures are logged and yield an empty result,
// which callers treat as "no context found".
func (r *Retriever) Search(ctx context.Context, query string, k int) []models.EncodedDocument {
	if k <= 0 {
		k = r.k
	}

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.fail(metrics.OpEmbedding)
		r.logger.Warn("query embedding failed, continuing without context", "error", err, "query_len", len(query))
		return []models.EncodedDocument{}
	}
	r.record(metrics.OpEmbedding, time.Since(start))

	start = time.Now()
	hits, err := r.searcher.Search(ctx, vec, k)
	if err != nil {
		r.fail(metrics.OpRetrieval)
		r.logger.Warn("vector search failed, continuing without context", "error", err)
		return []models.EncodedDocument{}
	}
	r.record(metrics.OpRetrieval, time.Since(start))

	docs := make([]models.EncodedDocument, 0, len(hits))
	for _, h := range hits {
		if r.filter && h.Score <= r.minScore {
			continue
		}
		docs = append(docs, h.Document)
		if len(docs) == k {
			break
		}
	}

	r.logger.Debug("retrieved documents", "k", k, "hits", len(hits), "source_count", len(docs),
		"ids", models.DocumentIDs(docs))
	return docs
}

func (r *Retriever) record(op string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordTiming(op, d)
	}
}

func (r *Retriever) fail(op string) {
	if r.metrics != nil {
		r.metrics.RecordFailure(op)
	}
}
