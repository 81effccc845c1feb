// Package embedding turns text into fixed-size dense vectors.
//
// Providers (Ollama, OpenAI, ONNX, hashing) implement Embedder. Decorators
// in this package add input validation, caching and rate limiting; they
// are stacked once at startup and shared by every request.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Embedder maps text to a vector of Dimensions() floats.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

var (
	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = errors.New("embedding: empty text")
	// ErrDimension is returned when a provider yields a vector of the wrong size.
	ErrDimension = errors.New("embedding: dimension mismatch")
)

// Close releases e if it holds resources.
func Close(e Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Guard rejects empty input, truncates long input and checks the output
// dimension of the wrapped embedder.
type Guard struct {
	next     Embedder
	maxRunes int
	logger   *slog.Logger
}

// NewGuard wraps next. maxRunes <= 0 disables truncation.
func NewGuard(next Embedder, maxRunes int, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{next: next, maxRunes: maxRunes, logger: logger}
}

// Embed implements Embedder.
func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if g.maxRunes > 0 && utf8.RuneCountInString(text) > g.maxRunes {
		g.logger.Warn("embedding: input truncated",
			"runes", utf8.RuneCountInString(text),
			"max_runes", g.maxRunes,
		)
		text = truncateRunes(text, g.maxRunes)
	}

	vec, err := g.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if want := g.next.Dimensions(); want > 0 && len(vec) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), want)
	}
	return vec, nil
}

// Dimensions implements Embedder.
func (g *Guard) Dimensions() int { return g.next.Dimensions() }

// Close closes the wrapped embedder.
func (g *Guard) Close() error { return Close(g.next) }

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
