package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/LuisaMG01/course-vectorization/pkg/resilience"
)

// Guarded routes every call of an Index through a circuit breaker so an
// unreachable backend fails fast instead of stalling each request.
type Guarded struct {
	next    Index
	breaker *resilience.Breaker
}

// NewGuarded wraps next with b.
func NewGuarded(next Index, b *resilience.Breaker) *Guarded {
	return &Guarded{next: next, breaker: b}
}

// IsBackendFailure reports whether err should count against a breaker.
// Caller mistakes such as a wrong vector length do not.
func IsBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrDimension) &&
		!errors.Is(err, context.Canceled)
}

func open(op string, kind, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("semantic: %s: %w: %w", op, kind, err)
	}
	return err
}

// Initialize bypasses the breaker so boot failures are reported as is.
func (g *Guarded) Initialize(ctx context.Context, dims int) error {
	return g.next.Initialize(ctx, dims)
}

func (g *Guarded) Upsert(ctx context.Context, rec Record) error {
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		return g.next.Upsert(ctx, rec)
	})
	return open("upsert", ErrWrite, err)
}

func (g *Guarded) Retrieve(ctx context.Context, id string) (Record, bool, error) {
	type found struct {
		rec Record
		ok  bool
	}
	res, err := resilience.Do(g.breaker, ctx, func(ctx context.Context) (found, error) {
		rec, ok, err := g.next.Retrieve(ctx, id)
		return found{rec, ok}, err
	})
	return res.rec, res.ok, open("retrieve", ErrRead, err)
}

func (g *Guarded) Delete(ctx context.Context, id string) error {
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		return g.next.Delete(ctx, id)
	})
	return open("delete", ErrWrite, err)
}

func (g *Guarded) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	hits, err := resilience.Do(g.breaker, ctx, func(ctx context.Context) ([]Hit, error) {
		return g.next.Search(ctx, vector, k)
	})
	return hits, open("search", ErrRead, err)
}

func (g *Guarded) Scroll(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	type page struct {
		ids  []string
		next string
	}
	p, err := resilience.Do(g.breaker, ctx, func(ctx context.Context) (page, error) {
		ids, next, err := g.next.Scroll(ctx, cursor, limit)
		return page{ids, next}, err
	})
	return p.ids, p.next, open("scroll", ErrRead, err)
}

// Close closes the wrapped index.
func (g *Guarded) Close() error { return g.next.Close() }
