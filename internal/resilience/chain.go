// Package resilience provides an ordered attempt chain: a list of named
// strategies tried in registration order until one succeeds.
//
// It replaces exception-driven fallback logic with an explicit structure —
// each step returns a value or an error, the driver stops at the first
// success, and only when every step has failed does the caller see an error,
// wrapping the last underlying cause.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every step in a [Chain] fails.
var ErrAllFailed = errors.New("all attempts failed")

// Step is one named strategy in a chain.
type Step[T any] struct {
	// Name identifies the step in logs (e.g. "local-dir", "registry-cache").
	Name string

	// Run executes the strategy. It must respect context cancellation.
	Run func(ctx context.Context) (T, error)
}

// Chain is an ordered list of fallback strategies producing a value of type T.
// Steps are tried strictly in order; the first success wins.
type Chain[T any] struct {
	name  string
	steps []Step[T]
}

// NewChain creates a chain. name labels the chain as a whole in logs and in
// the final error (e.g. "artifact-load").
func NewChain[T any](name string, steps ...Step[T]) *Chain[T] {
	return &Chain[T]{name: name, steps: steps}
}

// Execute runs the steps in order and returns the first successful value.
// Each failure is logged and the next step tried; when every step fails the
// returned error wraps [ErrAllFailed] and the last underlying error.
func (c *Chain[T]) Execute(ctx context.Context) (T, error) {
	var (
		lastErr error
		zero    T
	)
	if len(c.steps) == 0 {
		return zero, fmt.Errorf("%s: chain has no steps", c.name)
	}
	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", c.name, err)
		}
		v, err := step.Run(ctx)
		if err == nil {
			slog.Debug("attempt succeeded", "chain", c.name, "step", step.Name)
			return v, nil
		}
		lastErr = err
		slog.Warn("attempt failed, trying next",
			"chain", c.name, "step", step.Name, "error", err)
	}
	return zero, fmt.Errorf("%s: %w: %w", c.name, ErrAllFailed, lastErr)
}
