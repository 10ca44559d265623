package client

import (
	"context"

	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/provider"
	"github.com/gencode-labs/gencode/internal/retry"
)

// RetryPolicy configures the Model Stream Adapter's retry behavior. A
// nil *RetryPolicy on Client disables retrying entirely (the historical
// behavior); DefaultRetryPolicy mirrors the llm.retry.* configuration
// defaults.
type RetryPolicy struct {
	MaxAttempts int
	Policy      retry.Policy
}

// DefaultRetryPolicy retries transient failures up to 3 times with the
// package's default exponential-backoff-with-jitter policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3, Policy: retry.DefaultPolicy()}
}

// sendWithRetry wraps a one-shot provider call (Send/Complete) with
// retry, classifying errors via provider.Retryable. Non-transient errors
// (auth, context-length, content-filter, bad-model) propagate on the
// first attempt.
func sendWithRetry(ctx context.Context, rp *RetryPolicy, call func() (message.CompletionResponse, error)) (message.CompletionResponse, error) {
	if rp == nil {
		return call()
	}
	result, err := retry.WithBackoff(ctx, rp.Policy, rp.MaxAttempts, provider.Retryable,
		func(int) (message.CompletionResponse, error) { return call() })
	if err != nil && result.LastError != nil {
		return result.Value, result.LastError
	}
	return result.Value, err
}

// streamWithRetry retries the underlying Stream call only while no
// chunk has yet reached the caller: if the provider fails before
// emitting anything (the common case — auth/connection/5xx failures
// happen during request setup), it is indistinguishable from a fresh
// call and safe to retry in full. Once a chunk has been forwarded,
// the attempt is committed and any later error chunk is passed through
// as-is, since replaying the call now would duplicate output already
// delivered to the caller.
func streamWithRetry(ctx context.Context, rp *RetryPolicy, call func() <-chan message.StreamChunk) <-chan message.StreamChunk {
	out := make(chan message.StreamChunk)

	go func() {
		defer close(out)

		if rp == nil {
			forward(call(), out)
			return
		}

		maxAttempts := rp.MaxAttempts
		if maxAttempts < 1 {
			maxAttempts = 1
		}

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if ctx.Err() != nil {
				return
			}

			committed, lastErr := forwardFirstAttempt(call(), out)
			if lastErr == nil {
				return
			}
			if committed || !provider.Retryable(lastErr) || attempt == maxAttempts {
				if !committed {
					out <- message.StreamChunk{Type: message.ChunkTypeError, Error: lastErr}
				}
				return
			}
			if serr := retry.SleepWithBackoff(ctx, rp.Policy, attempt); serr != nil {
				return
			}
		}
	}()

	return out
}

func forward(ch <-chan message.StreamChunk, out chan<- message.StreamChunk) {
	for chunk := range ch {
		out <- chunk
	}
}

// forwardFirstAttempt forwards chunks until either Done, or an Error
// chunk. It reports whether any chunk was already committed (forwarded)
// before the error, and the error itself (nil on success).
func forwardFirstAttempt(ch <-chan message.StreamChunk, out chan<- message.StreamChunk) (committed bool, err error) {
	for chunk := range ch {
		if chunk.Type == message.ChunkTypeError && !committed {
			return false, chunk.Error
		}
		out <- chunk
		committed = true
		if chunk.Type == message.ChunkTypeError {
			return committed, chunk.Error
		}
	}
	return committed, nil
}
