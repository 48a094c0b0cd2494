package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestSchemaSQLDimension(t *testing.T) {
	sql := SchemaSQL(1536)
	assert.Contains(t, sql, "HNSW DIMENSION 1536 DIST COSINE")
	assert.Contains(t, sql, "DEFINE TABLE IF NOT EXISTS advisory SCHEMAFULL")
	assert.NotContains(t, sql, "%d")
}

func TestWrapQueryError(t *testing.T) {
	assert.NoError(t, wrapQueryError(nil))

	plain := errors.New("socket closed")
	assert.Same(t, plain, wrapQueryError(plain))

	dup := fmt.Errorf("insert: %w", &surrealdb.QueryError{Message: "Database index `advisory_id_unique` already contains '1'"})
	assert.ErrorIs(t, wrapQueryError(dup), ErrAlreadyExists)

	conflict := &surrealdb.QueryError{Message: "Transaction conflict: resource busy"}
	assert.ErrorIs(t, wrapQueryError(conflict), ErrTransactionConflict)

	dim := &surrealdb.QueryError{Message: "Incorrect vector dimension (4). Expected a vector of 8 dimension."}
	assert.ErrorIs(t, wrapQueryError(dim), ErrDimensionMismatch)

	other := &surrealdb.QueryError{Message: "Parse error"}
	assert.Same(t, error(other), wrapQueryError(other))
}

func TestConfigValidate(t *testing.T) {
	valid := Config{URL: "ws://localhost:8000/rpc", Namespace: "agri", Database: "advisory", AuthLevel: "root"}
	assert.NoError(t, valid.Validate())

	err := Config{URL: "ws://localhost:8000/rpc"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "namespace, database")

	bad := valid
	bad.AuthLevel = "scope"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	d := valid.withDefaults()
	assert.Equal(t, DefaultDialTimeout, d.DialTimeout)
	assert.Equal(t, DefaultMaxRetries, d.MaxRetries)
}

func TestAdvisoryRowHit(t *testing.T) {
	hit := advisoryRow{
		AdvisoryID: "7",
		Position:   3,
		Content:    "content",
		Region:     "Bihar",
		Topic:      "Soil",
		SearchText: "q a Bihar Soil",
		Score:      0.75,
	}.hit()

	assert.Equal(t, "7", hit.Document.Metadata.ID)
	assert.Equal(t, "Bihar", hit.Document.Metadata.Region)
	assert.Equal(t, 3, hit.Position)
	assert.Equal(t, float32(0.75), hit.Score)
}
