//go:build cgo
// +build cgo

package scoring

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXScorer runs a feed-forward ranking model through ONNX Runtime. It requires
// CGO and the onnxruntime shared library. Input shape is (1, inputWidth) and the
// output is one probability per dense book index, shape (1, outputWidth).
type ONNXScorer struct {
	session     *ort.AdvancedSession
	inputWidth  int
	outputWidth int
	// Pre-allocated tensors for Run(); we overwrite input data and read output.
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXScorer loads the model at modelPath. libraryPath, when set, points at the
// onnxruntime shared library. InitializeEnvironment is called once per process.
func NewONNXScorer(modelPath, libraryPath, inputName, outputName string, inputWidth, outputWidth int) (*ONNXScorer, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(inputWidth)), make([]float32, inputWidth))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(outputWidth)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXScorer{
		session:      session,
		inputWidth:   inputWidth,
		outputWidth:  outputWidth,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Score runs one inference and returns the top-k output positions.
func (s *ONNXScorer) Score(ctx context.Context, vector []float32, k int) ([]int, error) {
	if len(vector) != s.inputWidth {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.inputWidth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	copy(s.inputTensor.GetData(), vector)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	if len(out) != s.outputWidth {
		return nil, fmt.Errorf("%w: %d outputs, want %d", ErrMalformedOutput, len(out), s.outputWidth)
	}
	probs := make([]float32, len(out))
	for i, v := range out {
		if math.IsNaN(float64(v)) {
			return nil, fmt.Errorf("%w: NaN at position %d", ErrMalformedOutput, i)
		}
		probs[i] = v
	}
	return TopK(probs, k), nil
}

// InputWidth returns the expected profile vector width.
func (s *ONNXScorer) InputWidth() int {
	return s.inputWidth
}

// Close destroys the session and tensors.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	if s.inputTensor != nil {
		_ = s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		_ = s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	return err
}
