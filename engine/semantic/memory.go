package semantic

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryIndex is a map-backed Index using brute-force cosine search.
type MemoryIndex struct {
	mu     sync.RWMutex
	dims   int
	points map[string]Record
}

// NewMemoryIndex returns an empty, uninitialised index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Record)}
}

// Initialize sets the dimension on first call and is a no-op afterwards.
func (m *MemoryIndex) Initialize(_ context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("semantic: memory: dimension must be positive, got %d", dims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dims == 0 {
		m.dims = dims
	}
	return nil
}

// Upsert implements Index.
func (m *MemoryIndex) Upsert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dims == 0 {
		return fmt.Errorf("semantic: memory: upsert %s: %w: %w", rec.ID, ErrWrite, ErrNotInitialized)
	}
	if len(rec.Vector) != m.dims {
		return fmt.Errorf("semantic: memory: upsert %s: %w: %w: got %d, want %d",
			rec.ID, ErrWrite, ErrDimension, len(rec.Vector), m.dims)
	}
	m.points[rec.ID] = Record{
		ID:      rec.ID,
		Vector:  slices.Clone(rec.Vector),
		Payload: maps.Clone(rec.Payload),
	}
	return nil
}

// Retrieve implements Index.
func (m *MemoryIndex) Retrieve(_ context.Context, id string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.points[id]
	if !ok {
		return Record{}, false, nil
	}
	return Record{ID: rec.ID, Vector: slices.Clone(rec.Vector), Payload: maps.Clone(rec.Payload)}, true, nil
}

// Delete implements Index.
func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, id)
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dims != 0 && len(vector) != m.dims {
		return nil, fmt.Errorf("semantic: memory: search: %w: %w: got %d, want %d",
			ErrRead, ErrDimension, len(vector), m.dims)
	}
	return topK(vector, k, func(yield func(string, []float32, map[string]string) error) error {
		for id, rec := range m.points {
			if err := yield(id, rec.Vector, maps.Clone(rec.Payload)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scroll pages through ids in ascending order. The cursor is the first id
// of the next page.
func (m *MemoryIndex) Scroll(_ context.Context, cursor string, limit int) ([]string, string, error) {
	m.mu.RLock()
	ids := slices.Sorted(maps.Keys(m.points))
	m.mu.RUnlock()

	start, _ := slices.BinarySearch(ids, cursor)
	if limit <= 0 || start >= len(ids) {
		return []string{}, "", nil
	}
	end := min(start+limit, len(ids))
	next := ""
	if end < len(ids) {
		next = ids[end]
	}
	return ids[start:end], next, nil
}

// Len returns the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }
