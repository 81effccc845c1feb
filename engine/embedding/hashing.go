package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is a feature-hashing bag-of-words embedder. Every lowercase
// token is hashed into one of Dimensions() signed buckets and the result
// is L2-normalised, so texts sharing words get a positive cosine
// similarity. It needs no model and is used for local runs and tests.
type Hashing struct {
	dims int
}

// NewHashing returns a Hashing embedder. dims <= 0 defaults to 768.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = 768
	}
	return &Hashing{dims: dims}
}

// Embed implements Embedder.
func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float32, h.dims)
	for _, tok := range tokens {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	normalize(vec)
	return vec, nil
}

// Dimensions implements Embedder.
func (h *Hashing) Dimensions() int { return h.dims }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize scales x in place to unit L2 norm. Zero vectors are left alone.
func normalize(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range x {
		x[i] *= inv
	}
}
