package scoring

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockScorer is a deterministic scorer for tests and for running without a model.
// With a fixed ranking it returns that list; otherwise it ranks the direct-index
// neighbors of the books present in the profile.
type MockScorer struct {
	width       int
	directSlots int
	ranked      []int
	fixed       bool
	err         error
	calls       atomic.Int64
}

// MockOption configures a MockScorer.
type MockOption func(*MockScorer)

// WithRanking makes Score return ids (truncated to k) regardless of input.
func WithRanking(ids ...int) MockOption {
	return func(m *MockScorer) {
		m.ranked = append([]int(nil), ids...)
		m.fixed = true
	}
}

// WithError makes every Score call fail with err.
func WithError(err error) MockOption {
	return func(m *MockScorer) { m.err = err }
}

// NewMockScorer returns a scorer accepting vectors of width whose first
// directSlots positions are the direct-index region.
func NewMockScorer(width, directSlots int, opts ...MockOption) *MockScorer {
	if directSlots <= 0 || directSlots > width {
		directSlots = width
	}
	m := &MockScorer{width: width, directSlots: directSlots}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score returns a deterministic ranking.
func (m *MockScorer) Score(ctx context.Context, vector []float32, k int) ([]int, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if len(vector) != m.width {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), m.width)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.fixed {
		out := append([]int{}, m.ranked...)
		if k > 0 && k < len(out) {
			out = out[:k]
		}
		return out, nil
	}
	return m.neighbors(vector, k), nil
}

// neighbors walks outward from each active direct index, skipping active ones.
func (m *MockScorer) neighbors(vector []float32, k int) []int {
	if k <= 0 || k > m.directSlots {
		k = m.directSlots
	}
	var active []int
	isActive := make(map[int]bool)
	for i := 0; i < m.directSlots; i++ {
		if vector[i] > 0 {
			active = append(active, i)
			isActive[i] = true
		}
	}
	out := make([]int, 0, k)
	if len(active) == 0 {
		for i := 0; i < k; i++ {
			out = append(out, i)
		}
		return out
	}
	seen := make(map[int]bool)
	for d := 1; d < m.directSlots && len(out) < k; d++ {
		for _, a := range active {
			c := (a + d) % m.directSlots
			if isActive[c] || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			if len(out) == k {
				break
			}
		}
	}
	return out
}

// Calls returns how many times Score has been invoked.
func (m *MockScorer) Calls() int {
	return int(m.calls.Load())
}

// InputWidth returns the expected vector width.
func (m *MockScorer) InputWidth() int {
	return m.width
}

// Close is a no-op for MockScorer.
func (m *MockScorer) Close() error {
	return nil
}
