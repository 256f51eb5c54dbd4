package simulation

import (
	"context"
	"math/rand/v2"
	"time"
)

// Random is the source of uniform samples used for timing and entry selection.
// A *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// globalRandom draws from the math/rand/v2 top-level source, which is safe for concurrent use.
type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() } //nolint:gosec // jitter, not crypto
func (globalRandom) IntN(n int) int   { return rand.IntN(n) }   //nolint:gosec // jitter, not crypto

// NewSeededRandom returns a deterministic Random, useful for reproducible runs and tests.
// The returned source is not safe for concurrent use.
func NewSeededRandom(seed uint64) Random {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // jitter, not crypto
}

// SleepFunc blocks for d or until ctx is done, whichever happens first.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
