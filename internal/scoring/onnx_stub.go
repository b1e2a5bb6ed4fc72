//go:build !cgo
// +build !cgo

package scoring

import (
	"context"
	"errors"
)

// ONNXScorer stub type when built without CGO (see onnx.go for real implementation).
type ONNXScorer struct{}

// NewONNXScorer returns an error when built without CGO (ONNX not available).
func NewONNXScorer(_, _, _, _ string, _, _ int) (*ONNXScorer, error) {
	return nil, errors.New("ONNX scorer requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Score always fails on the stub.
func (s *ONNXScorer) Score(context.Context, []float32, int) ([]int, error) {
	return nil, ErrNotInitialized
}

// InputWidth returns 0 on the stub.
func (s *ONNXScorer) InputWidth() int { return 0 }

// Close is a no-op on the stub.
func (s *ONNXScorer) Close() error { return nil }
