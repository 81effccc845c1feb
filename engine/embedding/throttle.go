package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled limits the call rate into a provider.
type Throttled struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewThrottled wraps next with a token bucket of rps tokens per second and
// the given burst. rps <= 0 returns next unchanged.
func NewThrottled(next Embedder, rps float64, burst int) Embedder {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Embed waits for a token, then calls the wrapped embedder.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding: throttle: %w", err)
	}
	return t.next.Embed(ctx, text)
}

// Dimensions implements Embedder.
func (t *Throttled) Dimensions() int { return t.next.Dimensions() }

// Close closes the wrapped embedder.
func (t *Throttled) Close() error { return Close(t.next) }
