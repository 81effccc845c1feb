package semantic

import (
	"cmp"
	"math"
	"slices"
)

// Record is a stored vector with its payload.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Hit is a single similarity search result.
type Hit struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Payload map[string]string `json:"payload,omitempty"`
}

// SortHits orders hits by score descending, then ID ascending.
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// topK scores every candidate against query and keeps the k best.
func topK(query []float32, k int, candidates func(yield func(id string, vec []float32, payload map[string]string) error) error) ([]Hit, error) {
	hits := []Hit{}
	if k <= 0 {
		return hits, nil
	}
	err := candidates(func(id string, vec []float32, payload map[string]string) error {
		hits = append(hits, Hit{ID: id, Score: Cosine(query, vec), Payload: payload})
		return nil
	})
	if err != nil {
		return nil, err
	}
	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
