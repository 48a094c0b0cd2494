package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

var (
	// ErrInvalidConfig indicates incomplete connection settings.
	ErrInvalidConfig = errors.New("invalid database config")

	// ErrAlreadyExists indicates a duplicate advisory id was inserted.
	ErrAlreadyExists = errors.New("advisory already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Callers should typically retry the operation.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates nothing has been published to the database yet.
	ErrNotFound = errors.New("advisory index not found")

	// ErrDimensionMismatch indicates a vector does not match the published
	// index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// queryErrorPatterns maps SurrealDB error message fragments to sentinels.
var queryErrorPatterns = []struct {
	fragment string
	sentinel error
}{
	{"already contains", ErrAlreadyExists},
	{"already exists", ErrAlreadyExists},
	{"Transaction conflict", ErrTransactionConflict},
	{"Incorrect vector dimension", ErrDimensionMismatch},
}

// wrapQueryError wraps known SurrealDB query errors with a sentinel so
// callers can use errors.Is. Other errors are returned unchanged.
func wrapQueryError(err error) error {
	var queryErr *surrealdb.QueryError
	if !errors.As(err, &queryErr) {
		return err
	}
	for _, p := range queryErrorPatterns {
		if strings.Contains(queryErr.Message, p.fragment) {
			return fmt.Errorf("%w: %s", p.sentinel, queryErr.Message)
		}
	}
	return err
}
