// Package semantic owns the vector index: durable create, read, update
// and delete of (id, vector, payload) records plus cosine k-NN search.
//
// Three backends implement Index: Qdrant over gRPC for production, an
// embedded bbolt file for single-node deployments, and an in-memory map
// for tests.
package semantic

import (
	"context"
	"errors"
)

// DefaultPageSize is the scroll page size used by DeleteAll.
const DefaultPageSize = 100

var (
	// ErrWrite marks backend failures on upsert and delete.
	ErrWrite = errors.New("index write failed")
	// ErrRead marks backend failures on retrieve, scroll and search.
	ErrRead = errors.New("index read failed")
	// ErrDimension is returned when a vector does not match the collection.
	ErrDimension = errors.New("vector dimension mismatch")
	// ErrNotInitialized is returned by embedded backends before Initialize.
	ErrNotInitialized = errors.New("collection not initialized")
)

// Index is the vector index contract.
//
// Initialize creates the collection with the given dimension and cosine
// distance when it does not exist. An existing collection is left as is,
// even when its dimension differs.
//
// Retrieve reports a missing id as (Record{}, false, nil). Delete of a
// missing id succeeds. Search returns at most k hits sorted by SortHits;
// an empty collection yields an empty slice. Scroll pages through ids in
// a stable order; cursor "" starts from the beginning and a returned
// next of "" means there are no more pages.
type Index interface {
	Initialize(ctx context.Context, dims int) error
	Upsert(ctx context.Context, rec Record) error
	Retrieve(ctx context.Context, id string) (Record, bool, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Scroll(ctx context.Context, cursor string, limit int) (ids []string, next string, err error)
	Close() error
}

// DeleteAll pages through every id and deletes each one. It stops at the
// first page shorter than pageSize. Writers running concurrently may see
// their records survive or be removed right after insertion.
func DeleteAll(ctx context.Context, idx Index, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	deleted := 0
	cursor := ""
	for {
		ids, next, err := idx.Scroll(ctx, cursor, pageSize)
		if err != nil {
			return deleted, err
		}
		for _, id := range ids {
			if err := idx.Delete(ctx, id); err != nil {
				return deleted, err
			}
			deleted++
		}
		if len(ids) < pageSize || next == "" {
			return deleted, nil
		}
		cursor = next
	}
}
