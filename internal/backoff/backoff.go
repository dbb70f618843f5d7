// Package backoff computes exponential retry delays with jitter.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes ComputeBackoff.
type Policy struct {
	InitialMs float64
	MaxMs     float64
	Factor    float64
	Jitter    float64
}

// DefaultPolicy is a sensible default: 200ms initial, 20s cap, factor 2,
// 20% jitter.
func DefaultPolicy() Policy {
	return Policy{InitialMs: 200, MaxMs: 20000, Factor: 2, Jitter: 0.2}
}

// Compute returns the backoff duration for the given attempt (1-indexed).
func Compute(policy Policy, attempt int) time.Duration {
	return ComputeWithRand(policy, attempt, rand.Float64())
}

// ComputeWithRand computes the backoff duration using a caller-supplied
// random value in [0, 1), for deterministic testing.
func ComputeWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}
