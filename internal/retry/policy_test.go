package retry

import (
	"testing"
	"time"
)

func TestComputeBackoffWithRand(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		attempt     int
		randomValue float64
		expected    time.Duration
	}{
		{
			name:        "first attempt with no jitter",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0},
			attempt:     1,
			randomValue: 0.5,
			expected:    100 * time.Millisecond,
		},
		{
			name:        "second attempt doubles",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0},
			attempt:     2,
			randomValue: 0.5,
			expected:    200 * time.Millisecond,
		},
		{
			name:        "third attempt quadruples",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0},
			attempt:     3,
			randomValue: 0.5,
			expected:    400 * time.Millisecond,
		},
		{
			name:        "clamped to max",
			policy:      Policy{InitialMs: 100, MaxMs: 500, Factor: 2, Jitter: 0},
			attempt:     10,
			randomValue: 0.5,
			expected:    500 * time.Millisecond,
		},
		{
			name:        "with 10% jitter at max random",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0.1},
			attempt:     1,
			randomValue: 1.0,
			expected:    110 * time.Millisecond,
		},
		{
			name:        "with 10% jitter at zero random",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0.1},
			attempt:     1,
			randomValue: 0.0,
			expected:    100 * time.Millisecond,
		},
		{
			name:        "attempt 0 treated as 1",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0},
			attempt:     0,
			randomValue: 0.5,
			expected:    100 * time.Millisecond,
		},
		{
			name:        "negative attempt treated as 1",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0},
			attempt:     -5,
			randomValue: 0.5,
			expected:    100 * time.Millisecond,
		},
		{
			name:        "factor 1.5",
			policy:      Policy{InitialMs: 100, MaxMs: 10000, Factor: 1.5, Jitter: 0},
			attempt:     3,
			randomValue: 0.5,
			expected:    225 * time.Millisecond,
		},
		{
			name:        "jitter causes max clamping",
			policy:      Policy{InitialMs: 100, MaxMs: 105, Factor: 1, Jitter: 0.5},
			attempt:     1,
			randomValue: 1.0,
			expected:    105 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBackoffWithRand(tt.policy, tt.attempt, tt.randomValue)
			if got != tt.expected {
				t.Errorf("ComputeBackoffWithRand() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestComputeBackoff_JitterRange(t *testing.T) {
	policy := Policy{InitialMs: 100, MaxMs: 10000, Factor: 2, Jitter: 0.2}

	minExpected := 100 * time.Millisecond
	maxExpected := 120 * time.Millisecond

	for i := 0; i < 100; i++ {
		got := ComputeBackoff(policy, 1)
		if got < minExpected || got > maxExpected {
			t.Errorf("ComputeBackoff() = %v, want in range [%v, %v]", got, minExpected, maxExpected)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	if policy.InitialMs != 1000 || policy.MaxMs != 30000 || policy.Factor != 2 || policy.Jitter != 0.2 {
		t.Errorf("DefaultPolicy() = %+v, unexpected", policy)
	}
}

func TestPolicyComparison(t *testing.T) {
	aggressive := AggressivePolicy()
	defaultP := DefaultPolicy()
	conservative := ConservativePolicy()

	aggBackoff := ComputeBackoffWithRand(aggressive, 1, 0)
	defBackoff := ComputeBackoffWithRand(defaultP, 1, 0)
	consBackoff := ComputeBackoffWithRand(conservative, 1, 0)

	if aggBackoff >= defBackoff {
		t.Errorf("aggressive backoff %v should be < default backoff %v", aggBackoff, defBackoff)
	}
	if defBackoff >= consBackoff {
		t.Errorf("default backoff %v should be < conservative backoff %v", defBackoff, consBackoff)
	}
}
