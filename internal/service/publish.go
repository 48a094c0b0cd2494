package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/agriassist/internal/index"
)

// Publisher stores a built index in a remote vector backend.
type Publisher interface {
	QueryPublish(ctx context.Context, ix *index.Index, batchSize int) error
}

// PublishIndex loads the snapshot at indexDir and publishes it.
func PublishIndex(ctx context.Context, pub Publisher, indexDir string, batchSize int, logger *slog.Logger) (*index.Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ix, err := index.Load(indexDir, 0)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	manifest, err := index.ReadManifest(indexDir)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	if err := pub.QueryPublish(ctx, ix, batchSize); err != nil {
		return nil, err
	}
	logger.Info("index published", "documents", ix.Len(), "model", ix.Model(), "dimension", ix.Dimension())
	return &manifest, nil
}
