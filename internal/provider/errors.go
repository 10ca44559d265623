package provider

import (
	"errors"
	"net"
	"strings"
)

// FailureKind classifies a provider error for the Model Stream Adapter's
// retry policy. Transient failures (network blips, 5xx, rate limiting)
// and unclassified (FailureUnknown) ones are retried with backoff by the
// Retryable classifier; auth, context-length, content-filter and
// bad-model failures surface immediately.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureAuth
	FailureContextLength
	FailureContentFilter
	FailureBadModel
	FailureUnknown
)

// Error wraps a provider failure with its classification.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure kind is FailureTransient. The
// package-level Retryable classifier also retries FailureUnknown.
func (e *Error) Retryable() bool { return e.Kind == FailureTransient }

// Classify inspects an error returned by a provider client and tags it
// with a FailureKind using message-substring heuristics, since the
// underlying SDKs (anthropic-sdk-go, openai-go, genai) don't share a
// common typed-error hierarchy across providers.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: FailureTransient, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "invalid api key", "authentication"):
		return &Error{Kind: FailureAuth, Err: err}
	case containsAny(msg, "context length", "context_length", "maximum context", "too many tokens", "prompt is too long"):
		return &Error{Kind: FailureContextLength, Err: err}
	case containsAny(msg, "content filter", "content_filter", "safety", "blocked by policy"):
		return &Error{Kind: FailureContentFilter, Err: err}
	case containsAny(msg, "model not found", "unknown model", "invalid model", "404"):
		return &Error{Kind: FailureBadModel, Err: err}
	case containsAny(msg, "429", "rate limit", "overloaded", "503", "502", "500", "timeout", "connection reset", "temporarily unavailable"):
		return &Error{Kind: FailureTransient, Err: err}
	default:
		return &Error{Kind: FailureUnknown, Err: err}
	}
}

// Retryable is a retry.Classifier: it retries FailureTransient and
// FailureUnknown (conservatively — an SDK error we can't classify is
// more likely transient infrastructure noise than a permanent rejection)
// and stops immediately on auth/context-length/content-filter/bad-model.
func Retryable(err error) bool {
	ce := Classify(err)
	if ce == nil {
		return false
	}
	return ce.Kind == FailureTransient || ce.Kind == FailureUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
