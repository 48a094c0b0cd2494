package index

import "errors"

// Sentinel errors for index operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmbeddingProvider indicates the embedding provider failed while
	// building the index. Nothing is persisted when this occurs.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrIndexNotFound indicates no snapshot exists at the given path.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexVersionMismatch indicates the snapshot was written with a
	// different format or embedding dimension than currently configured.
	// The index must be rebuilt.
	ErrIndexVersionMismatch = errors.New("index version mismatch")

	// ErrDimensionMismatch indicates a query vector of the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
