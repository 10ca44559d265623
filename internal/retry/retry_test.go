package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errTemporary = errors.New("temporary error")

func TestWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	ctx := context.Background()
	policy := Policy{InitialMs: 10, MaxMs: 100, Factor: 2, Jitter: 0}

	var attempts int32
	result, err := WithBackoff(ctx, policy, 3, AlwaysRetry, func(attempt int) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "success", nil
	})

	if err != nil {
		t.Errorf("WithBackoff() error = %v, want nil", err)
	}
	if result.Value != "success" {
		t.Errorf("WithBackoff() value = %v, want success", result.Value)
	}
	if result.Attempts != 1 {
		t.Errorf("WithBackoff() attempts = %v, want 1", result.Attempts)
	}
}

func TestWithBackoff_SucceedsAfterRetries(t *testing.T) {
	ctx := context.Background()
	policy := Policy{InitialMs: 5, MaxMs: 100, Factor: 2, Jitter: 0}

	var attempts int32
	result, err := WithBackoff(ctx, policy, 5, AlwaysRetry, func(attempt int) (int, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return 0, errTemporary
		}
		return int(n), nil
	})

	if err != nil {
		t.Errorf("WithBackoff() error = %v, want nil", err)
	}
	if result.Value != 3 {
		t.Errorf("WithBackoff() value = %v, want 3", result.Value)
	}
}

func TestWithBackoff_AllAttemptsFail(t *testing.T) {
	ctx := context.Background()
	policy := Policy{InitialMs: 5, MaxMs: 100, Factor: 2, Jitter: 0}

	var attempts int32
	result, err := WithBackoff(ctx, policy, 3, AlwaysRetry, func(attempt int) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", errTemporary
	})

	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Errorf("WithBackoff() error = %v, want ErrMaxAttemptsExhausted", err)
	}
	if result.LastError != errTemporary {
		t.Errorf("WithBackoff() LastError = %v, want errTemporary", result.LastError)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("Function called %v times, want 3", attempts)
	}
}

func TestWithBackoff_NonTransientStopsImmediately(t *testing.T) {
	ctx := context.Background()
	policy := Policy{InitialMs: 50, MaxMs: 1000, Factor: 2, Jitter: 0}
	errFatal := errors.New("auth failure")

	var attempts int32
	_, err := WithBackoff(ctx, policy, 5, func(e error) bool { return !errors.Is(e, errFatal) },
		func(attempt int) (string, error) {
			atomic.AddInt32(&attempts, 1)
			return "", errFatal
		})

	if !errors.Is(err, errFatal) {
		t.Errorf("WithBackoff() error = %v, want errFatal", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("Function called %v times, want 1 (non-transient stops retry)", attempts)
	}
}

func TestWithBackoff_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{InitialMs: 100, MaxMs: 1000, Factor: 2, Jitter: 0}

	var attempts int32
	go func() {
		for atomic.LoadInt32(&attempts) < 1 {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result, err := WithBackoff(ctx, policy, 5, AlwaysRetry, func(attempt int) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", errTemporary
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithBackoff() error = %v, want context.Canceled", err)
	}
	if result.Attempts < 1 {
		t.Errorf("WithBackoff() attempts = %v, want >= 1", result.Attempts)
	}
}

func TestWithBackoff_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := Policy{InitialMs: 100, MaxMs: 1000, Factor: 2, Jitter: 0}

	var attempts int32
	_, err := WithBackoff(ctx, policy, 5, AlwaysRetry, func(attempt int) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "success", nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithBackoff() error = %v, want context.Canceled", err)
	}
	if atomic.LoadInt32(&attempts) != 0 {
		t.Errorf("Function called %v times, want 0", attempts)
	}
}

func TestWithBackoff_AttemptNumberPassedCorrectly(t *testing.T) {
	ctx := context.Background()
	policy := Policy{InitialMs: 1, MaxMs: 100, Factor: 2, Jitter: 0}

	var received []int
	_, _ = WithBackoff(ctx, policy, 3, AlwaysRetry, func(attempt int) (struct{}, error) {
		received = append(received, attempt)
		return struct{}{}, errTemporary
	})

	expected := []int{1, 2, 3}
	if len(received) != len(expected) {
		t.Fatalf("got %v attempts, want %v", len(received), len(expected))
	}
	for i, v := range expected {
		if received[i] != v {
			t.Errorf("attempt %d: got %v, want %v", i, received[i], v)
		}
	}
}

func TestFunc_Success(t *testing.T) {
	ctx := context.Background()

	var attempts int32
	result, err := Func(ctx, 3, func(attempt int) (string, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return "", errTemporary
		}
		return "done", nil
	})

	if err != nil {
		t.Errorf("Func() error = %v, want nil", err)
	}
	if result != "done" {
		t.Errorf("Func() result = %v, want done", result)
	}
}

func TestFunc_Failure(t *testing.T) {
	ctx := context.Background()

	_, err := Func(ctx, 2, func(attempt int) (string, error) {
		return "", errTemporary
	})

	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Errorf("Func() error = %v, want ErrMaxAttemptsExhausted", err)
	}
}

func TestWithBackoff_BackoffActuallyApplied(t *testing.T) {
	ctx := context.Background()
	policy := Policy{InitialMs: 20, MaxMs: 1000, Factor: 2, Jitter: 0}

	start := time.Now()
	_, _ = WithBackoff(ctx, policy, 3, AlwaysRetry, func(attempt int) (string, error) {
		return "", errTemporary
	})
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("WithBackoff() completed too quickly: %v, expected >= 50ms of backoff", elapsed)
	}
}
