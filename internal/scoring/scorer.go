// Package scoring provides the profile-vector scorer: an ONNX model backend,
// a deterministic mock, and a guard that adds timeouts and a circuit breaker.
package scoring

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrDimensionMismatch is returned when the profile vector width differs from the model input.
	ErrDimensionMismatch = errors.New("profile vector dimension mismatch")
	// ErrNotInitialized is returned when the scorer has been closed or never loaded.
	ErrNotInitialized = errors.New("scorer not initialized")
	// ErrMalformedOutput is returned when the model output cannot be ranked.
	ErrMalformedOutput = errors.New("malformed scorer output")
	// ErrTimeout is returned when a guarded call exceeds its deadline.
	ErrTimeout = errors.New("scorer timed out")
)

// Scorer ranks dense book indices for a fixed-width profile vector.
// Score returns at most k indices, most confident first.
type Scorer interface {
	Score(ctx context.Context, vector []float32, k int) ([]int, error)
	InputWidth() int
	Close() error
}

// TopK returns the indices of the k largest scores, highest first.
// Ties keep ascending index order. k <= 0 or k > len(scores) returns all indices.
func TopK(scores []float32, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
