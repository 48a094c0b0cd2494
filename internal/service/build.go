// Package service wires the advisory components together: the offline
// index pipeline, publishing to SurrealDB, and the online runtime.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/agriassist/internal/encoder"
	"github.com/raphaelgruber/agriassist/internal/index"
	"github.com/raphaelgruber/agriassist/internal/records"
)

// BuildOptions configures an index build.
type BuildOptions struct {
	// DataFile is the JSON or YAML record file.
	DataFile string
	// IndexDir is where the snapshot is written.
	IndexDir string
	// BatchSize caps documents per embedding request.
	BatchSize int
	// Progress is called after every embedded batch (optional).
	Progress func(done, total int)
	// DryRun validates and encodes records without embedding or saving.
	DryRun bool
}

// BuildResult summarizes an index build.
type BuildResult struct {
	Records   int
	Model     string
	Dimension int
	IndexDir  string
	Duration  time.Duration
	Saved     bool
}

// BuildIndex loads, validates and encodes the records, embeds them and
// saves the snapshot. Any failure leaves an existing snapshot untouched.
func BuildIndex(ctx context.Context, embedder index.BatchEmbedder, opts BuildOptions, logger *slog.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	recs, err := records.Load(opts.DataFile)
	if err != nil {
		return nil, err
	}
	docs := encoder.EncodeAll(recs)
	logger.Info("records loaded", "file", opts.DataFile, "records", len(recs))

	result := &BuildResult{
		Records:   len(recs),
		Model:     embedder.Model(),
		Dimension: embedder.Dimension(),
		IndexDir:  opts.IndexDir,
	}
	if opts.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	buildOpts := []index.BuildOption{index.WithLogger(logger)}
	if opts.BatchSize > 0 {
		buildOpts = append(buildOpts, index.WithBatchSize(opts.BatchSize))
	}
	if opts.Progress != nil {
		buildOpts = append(buildOpts, index.WithProgress(opts.Progress))
	}

	ix, err := index.Build(ctx, docs, embedder, buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := ix.Save(opts.IndexDir); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	result.Dimension = ix.Dimension()
	result.Saved = true
	result.Duration = time.Since(start)
	logger.Info("index saved",
		"dir", opts.IndexDir,
		"documents", ix.Len(),
		"model", ix.Model(),
		"dimension", ix.Dimension(),
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}
