package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/metrics"
)

// GuardConfig configures GuardedScorer.
type GuardConfig struct {
	Name string
	// Timeout bounds each Score call. Zero disables the deadline.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker. Zero disables tripping.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before a trial call.
	Cooldown time.Duration
}

// GuardedScorer wraps a Scorer with a per-call deadline and a circuit breaker.
type GuardedScorer struct {
	inner   Scorer
	name    string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[[]int]
	logger  *zap.Logger
}

// NewGuardedScorer wraps inner. logger may be nil.
func NewGuardedScorer(inner Scorer, cfg GuardConfig, logger *zap.Logger) *GuardedScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "scorer"
	}
	g := &GuardedScorer{
		inner:   inner,
		name:    cfg.Name,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker[[]int](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.FailureThreshold > 0 && counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the backend's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("scorer circuit breaker state change",
				zap.String("scorer", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// Score calls the wrapped scorer through the breaker and deadline.
func (g *GuardedScorer) Score(ctx context.Context, vector []float32, k int) ([]int, error) {
	start := time.Now()
	ranked, err := g.breaker.Execute(func() ([]int, error) {
		return g.scoreWithTimeout(ctx, vector, k)
	})
	metrics.ScorerDuration.WithLabelValues(g.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScorerErrorsTotal.WithLabelValues(g.name, errorReason(err)).Inc()
		return nil, err
	}
	return ranked, nil
}

func (g *GuardedScorer) scoreWithTimeout(ctx context.Context, vector []float32, k int) ([]int, error) {
	if g.timeout <= 0 {
		return g.inner.Score(ctx, vector, k)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		ranked []int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		ranked, err := g.inner.Score(ctx, vector, k)
		done <- result{ranked, err}
	}()

	select {
	case r := <-done:
		return r.ranked, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		}
		return nil, ctx.Err()
	}
}

// State returns the breaker state ("closed", "half-open", "open").
func (g *GuardedScorer) State() string {
	return g.breaker.State().String()
}

// InputWidth returns the wrapped scorer's input width.
func (g *GuardedScorer) InputWidth() int {
	return g.inner.InputWidth()
}

// Close closes the wrapped scorer.
func (g *GuardedScorer) Close() error {
	return g.inner.Close()
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
