// Package docstore is the document-store collaborator behind imports:
// batched atomic writes, lookups by id and query-by-field, with a
// per-call operation ceiling the callers must chunk against.
package docstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// DefaultMaxBatchOps is the per-call operation ceiling used when the
// backing store doesn't impose its own.
const DefaultMaxBatchOps = 500

// Document is a schemaless record in a named collection.
type Document struct {
	Collection string
	ID         string
	Fields     map[string]any
	UpdatedAt  time.Time
}

// FilterOp is a comparison operator for queries.
type FilterOp string

const (
	OpEqual        FilterOp = "=="
	OpGreaterEqual FilterOp = ">="
	OpLessEqual    FilterOp = "<="
)

// Filter restricts a query to documents whose field satisfies the operator.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Query describes a filtered, ordered read over one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// WriteOp is one entry in an atomic batch write.
type WriteOp struct {
	Document Document
}

// Store is the persistence contract the import pipeline runs against.
// BatchWrite and BatchDelete are atomic per call; callers must keep each
// call within MaxBatchOps operations.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	BatchWrite(ctx context.Context, ops []WriteOp) error
	BatchDelete(ctx context.Context, collection string, ids []string) error
	MaxBatchOps() int
}

// Chunk splits items into slices of at most size elements, preserving order.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
