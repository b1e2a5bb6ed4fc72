package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTopK(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		k      int
		want   []int
	}{
		{"descending", []float32{0.1, 0.9, 0.5}, 2, []int{1, 2}},
		{"ties keep index order", []float32{0.5, 0.7, 0.5, 0.5}, 3, []int{1, 0, 2}},
		{"k larger than input", []float32{0.2, 0.1}, 10, []int{0, 1}},
		{"k zero returns all", []float32{0.1, 0.3}, 0, []int{1, 0}},
		{"empty", nil, 5, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopK(tt.scores, tt.k)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("TopK = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMockScorer_Neighbors(t *testing.T) {
	m := NewMockScorer(20, 10)
	vec := make([]float32, 20)
	vec[3] = 1
	vec[4] = 1

	got, err := m.Score(context.Background(), vec, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 indices, got %v", got)
	}
	for _, idx := range got {
		if idx == 3 || idx == 4 {
			t.Errorf("active index %d should not be recommended", idx)
		}
		if idx < 0 || idx >= 10 {
			t.Errorf("index %d outside direct region", idx)
		}
	}
	if m.Calls() != 1 {
		t.Errorf("Calls = %d", m.Calls())
	}
}

func TestMockScorer_EmptyProfile(t *testing.T) {
	m := NewMockScorer(20, 10)
	got, err := m.Score(context.Background(), make([]float32, 20), 3)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != "[0 1 2]" {
		t.Errorf("got %v", got)
	}
}

func TestMockScorer_Options(t *testing.T) {
	m := NewMockScorer(5, 5, WithRanking(4, 2, 0))
	got, _ := m.Score(context.Background(), make([]float32, 5), 2)
	if fmt.Sprint(got) != "[4 2]" {
		t.Errorf("fixed ranking: got %v", got)
	}

	boom := errors.New("boom")
	m = NewMockScorer(5, 5, WithError(boom))
	if _, err := m.Score(context.Background(), make([]float32, 5), 2); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestMockScorer_DimensionMismatch(t *testing.T) {
	m := NewMockScorer(5, 5)
	if _, err := m.Score(context.Background(), make([]float32, 4), 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if m.InputWidth() != 5 {
		t.Errorf("InputWidth = %d", m.InputWidth())
	}
}

func BenchmarkTopK(b *testing.B) {
	scores := make([]float32, 567)
	for i := range scores {
		scores[i] = float32((i*7919)%567) / 567
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = TopK(scores, 20)
	}
}

func BenchmarkMockScorer_Score(b *testing.B) {
	s := NewMockScorer(2003, 1000)
	vec := make([]float32, 2003)
	for _, i := range []int{3, 250, 999} {
		vec[i] = 1
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Score(ctx, vec, 20)
	}
}
