package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/agriassist/internal/index"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// DefaultInsertBatch is the number of advisories inserted per query.
const DefaultInsertBatch = 500

// Meta describes the index published to the database.
type Meta struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Count     int       `json:"doc_count"`
	Published time.Time `json:"published"`
}

// advisoryRow is an advisory as returned by a vector search.
type advisoryRow struct {
	AdvisoryID string  `json:"advisory_id"`
	Position   int     `json:"position"`
	Content    string  `json:"content"`
	Region     string  `json:"region"`
	Topic      string  `json:"topic"`
	SearchText string  `json:"search_text"`
	Score      float64 `json:"score"`
}

func (r advisoryRow) hit() index.Hit {
	return index.Hit{
		Document: models.EncodedDocument{
			Content: r.Content,
			Metadata: models.DocumentMetadata{
				ID:         r.AdvisoryID,
				Region:     r.Region,
				Topic:      r.Topic,
				SearchText: r.SearchText,
			},
		},
		Score:    float32(r.Score),
		Position: r.Position,
	}
}

// QueryPublish replaces the stored advisories with the entries of a built
// index. The metadata record is written last, so a reader never sees
// metadata for a partially inserted index.
func (c *Client) QueryPublish(ctx context.Context, ix *index.Index, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatch
	}
	start := time.Now()

	if err := c.InitSchema(ctx, ix.Dimension()); err != nil {
		return err
	}
	if err := c.WipeData(ctx); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if _, err := surrealdb.Query[any](ctx, c.db, fmt.Sprintf(redefineVectorIndexSQL, ix.Dimension()), nil); err != nil {
		return fmt.Errorf("publish: redefine vector index: %w", err)
	}

	entries := ix.Entries()
	for lo := 0; lo < len(entries); lo += batchSize {
		hi := min(lo+batchSize, len(entries))
		rows := make([]map[string]any, 0, hi-lo)
		for _, e := range entries[lo:hi] {
			md := e.Document.Metadata
			rows = append(rows, map[string]any{
				"advisory_id": md.ID,
				"position":    e.Position,
				"content":     e.Document.Content,
				"region":      md.Region,
				"topic":       md.Topic,
				"search_text": md.SearchText,
				"embedding":   e.Vector,
			})
		}
		if _, err := surrealdb.Query[any](ctx, c.db, `INSERT INTO advisory $rows RETURN NONE`, map[string]any{"rows": rows}); err != nil {
			return fmt.Errorf("publish: insert %d-%d: %w", lo, hi, wrapQueryError(err))
		}
		c.logger.Info("inserted advisories", "done", hi, "total", len(entries))
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("advisory_meta", "current") SET
			model = $model,
			dimension = $dimension,
			doc_count = $count,
			published = time::now()
		RETURN NONE
	`, map[string]any{
		"model":     ix.Model(),
		"dimension": ix.Dimension(),
		"count":     len(entries),
	})
	if err != nil {
		return fmt.Errorf("publish: write meta: %w", err)
	}

	c.record(metrics.OpDBUpsert, time.Since(start))
	return nil
}

// QueryMeta returns the published index metadata, or ErrNotFound.
func (c *Client) QueryMeta(ctx context.Context) (*Meta, error) {
	results, err := surrealdb.Query[[]Meta](ctx, c.db, `
		SELECT model, dimension, doc_count, published FROM type::record("advisory_meta", "current")
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// QueryCount returns the number of stored advisories.
func (c *Client) QueryCount(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		C int `json:"c"`
	}](ctx, c.db, `SELECT count() AS c FROM advisory GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count advisories: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}

// QuerySearch returns the k advisories nearest to embedding by cosine
// similarity. Ties are ordered by insertion position.
func (c *Client) QuerySearch(ctx context.Context, embedding []float32, k int) ([]index.Hit, error) {
	if k <= 0 {
		return []index.Hit{}, nil
	}
	start := time.Now()

	// HNSW with ef=40 for better recall
	sql := fmt.Sprintf(`
		SELECT advisory_id, position, content, region, topic, search_text,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM advisory
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC, position ASC
		LIMIT $k
	`, k)

	results, err := surrealdb.Query[[]advisoryRow](ctx, c.db, sql, map[string]any{
		"emb": embedding,
		"k":   k,
	})
	c.record(metrics.OpDBSearch, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("search advisories: %w", err)
	}

	hits := []index.Hit{}
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			hits = append(hits, row.hit())
		}
	}
	return hits, nil
}

// VectorIndex serves searches over the published index.
type VectorIndex struct {
	client *Client
	meta   Meta
}

// OpenIndex checks that an index has been published and that its
// dimension matches expectedDimension (0 skips the check). Errors match
// the snapshot loader's: index.ErrIndexNotFound when nothing is published
// and index.ErrIndexVersionMismatch on a dimension mismatch.
func OpenIndex(ctx context.Context, c *Client, expectedDimension int) (*VectorIndex, error) {
	meta, err := c.QueryMeta(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("open index: %w: %w", index.ErrIndexNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if expectedDimension > 0 && meta.Dimension != expectedDimension {
		return nil, fmt.Errorf("open index: %w: %w: published %d, embedder %d",
			index.ErrIndexVersionMismatch, ErrDimensionMismatch, meta.Dimension, expectedDimension)
	}
	return &VectorIndex{client: c, meta: *meta}, nil
}

// Meta returns the published index metadata.
func (v *VectorIndex) Meta() Meta {
	return v.meta
}

// Search implements retriever.Searcher.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	if len(query) != v.meta.Dimension {
		return nil, fmt.Errorf("search: %w: got %d, want %d", ErrDimensionMismatch, len(query), v.meta.Dimension)
	}
	return v.client.QuerySearch(ctx, query, k)
}
