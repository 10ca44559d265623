// Package retry provides exponential backoff utilities with jitter for
// retrying the Model Stream Adapter's calls to an LLM provider. Ported
// from the equivalent generic backoff package used elsewhere in this
// codebase's provider-adjacent tooling.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// InitialMs is the initial backoff duration in milliseconds.
	InitialMs float64
	// MaxMs is the maximum backoff duration in milliseconds.
	MaxMs float64
	// Factor is the exponential factor applied to each attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to the backoff.
	Jitter float64
}

// ComputeBackoff calculates the backoff duration for a given attempt number.
// Attempt numbers start at 1.
func ComputeBackoff(policy Policy, attempt int) time.Duration {
	return ComputeBackoffWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// ComputeBackoffWithRand calculates the backoff duration using a supplied
// random value in [0.0, 1.0), for deterministic tests.
func ComputeBackoffWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// DefaultPolicy matches the llm.retry.* defaults: 1s initial, 30s max,
// factor 2, jitter on.
func DefaultPolicy() Policy {
	return Policy{InitialMs: 1000, MaxMs: 30000, Factor: 2, Jitter: 0.2}
}

// AggressivePolicy is for quick retries with shorter delays.
func AggressivePolicy() Policy {
	return Policy{InitialMs: 200, MaxMs: 5000, Factor: 1.5, Jitter: 0.1}
}

// ConservativePolicy is for slow retries with longer delays.
func ConservativePolicy() Policy {
	return Policy{InitialMs: 2000, MaxMs: 60000, Factor: 2.5, Jitter: 0.2}
}
