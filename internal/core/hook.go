package core

import (
	"context"

	"github.com/gencode-labs/gencode/internal/compactor"
	"github.com/gencode-labs/gencode/internal/message"
)

// HookAction is what a Hook asks the Session to do with its event.
type HookAction int

const (
	// HookContinue lets the event proceed unmodified.
	HookContinue HookAction = iota
	// HookStop aborts the current run, producing RunOutcome Stopped.
	HookStop
	// HookBlock is valid only from a BeforeToolHook: it substitutes
	// SyntheticResult for the tool call instead of executing it.
	HookBlock
	// HookModify carries a modified value back: ModifiedInput from a
	// BeforeToolHook replaces the call's arguments, ModifiedText from an
	// AfterToolHook replaces the result content. Session treats a Modify
	// from a turn or compress hook like Continue.
	HookModify
)

// HookResult is returned by each Hook method. The zero value is
// HookContinue with no modification, the safe default.
type HookResult struct {
	Action          HookAction
	Reason          string
	SyntheticResult *message.ToolResult
	ModifiedText    string
	ModifiedInput   map[string]any
}

// Continue is the zero HookResult, named for readability at call sites.
var Continue = HookResult{Action: HookContinue}

// Hook is implemented in whole or in part by registering any of the
// Before/After*Hook interfaces below; Session.RegisterHook inspects which
// ones a given value satisfies. This mirrors Go's small-interface
// idiom (e.g. io.Reader/Writer) rather than forcing every hook to
// implement every event as a no-op.
type BeforeTurnHook interface {
	BeforeTurn(ctx context.Context, turn int) HookResult
}

type AfterTurnHook interface {
	AfterTurn(ctx context.Context, turn int, text string) HookResult
}

type BeforeToolHook interface {
	BeforeTool(ctx context.Context, tc message.ToolCall) HookResult
}

type AfterToolHook interface {
	AfterTool(ctx context.Context, tc message.ToolCall, result message.ToolResult) HookResult
}

type BeforeCompressHook interface {
	BeforeCompress(ctx context.Context) HookResult
}

type AfterCompressHook interface {
	AfterCompress(ctx context.Context, outcome compactor.Outcome) HookResult
}

type OnErrorHook interface {
	OnError(ctx context.Context, err error) HookResult
}

// hookSet runs the registered in-process hooks for each event in
// registration order, honoring the "first Stop/Block short-circuits"
// contract; a hook that panics or whose method we can't satisfy is
// treated as Continue (hooks are side-channel observers, never fatal).
type hookSet struct {
	hooks []any
}

func (hs *hookSet) register(h any) {
	hs.hooks = append(hs.hooks, h)
}

func (hs *hookSet) beforeTurn(ctx context.Context, turn int) HookResult {
	for _, h := range hs.hooks {
		if bt, ok := h.(BeforeTurnHook); ok {
			if r := safeCall(func() HookResult { return bt.BeforeTurn(ctx, turn) }); r.Action != HookContinue {
				return r
			}
		}
	}
	return Continue
}

func (hs *hookSet) afterTurn(ctx context.Context, turn int, text string) HookResult {
	for _, h := range hs.hooks {
		if at, ok := h.(AfterTurnHook); ok {
			if r := safeCall(func() HookResult { return at.AfterTurn(ctx, turn, text) }); r.Action != HookContinue {
				return r
			}
		}
	}
	return Continue
}

func (hs *hookSet) beforeTool(ctx context.Context, tc message.ToolCall) HookResult {
	for _, h := range hs.hooks {
		if bt, ok := h.(BeforeToolHook); ok {
			if r := safeCall(func() HookResult { return bt.BeforeTool(ctx, tc) }); r.Action != HookContinue {
				return r
			}
		}
	}
	return Continue
}

func (hs *hookSet) afterTool(ctx context.Context, tc message.ToolCall, result message.ToolResult) HookResult {
	for _, h := range hs.hooks {
		if at, ok := h.(AfterToolHook); ok {
			if r := safeCall(func() HookResult { return at.AfterTool(ctx, tc, result) }); r.Action != HookContinue {
				return r
			}
		}
	}
	return Continue
}

func (hs *hookSet) beforeCompress(ctx context.Context) HookResult {
	for _, h := range hs.hooks {
		if bc, ok := h.(BeforeCompressHook); ok {
			if r := safeCall(func() HookResult { return bc.BeforeCompress(ctx) }); r.Action != HookContinue {
				return r
			}
		}
	}
	return Continue
}

func (hs *hookSet) afterCompress(ctx context.Context, outcome compactor.Outcome) HookResult {
	for _, h := range hs.hooks {
		if ac, ok := h.(AfterCompressHook); ok {
			if r := safeCall(func() HookResult { return ac.AfterCompress(ctx, outcome) }); r.Action != HookContinue {
				return r
			}
		}
	}
	return Continue
}

func (hs *hookSet) onError(ctx context.Context, err error) {
	for _, h := range hs.hooks {
		if oe, ok := h.(OnErrorHook); ok {
			safeCall(func() HookResult { return oe.OnError(ctx, err) })
		}
	}
}

// safeCall recovers a panicking hook body and degrades it to Continue,
// matching the spec's "hook errors are caught ... treated as Continue".
func safeCall(fn func() HookResult) (result HookResult) {
	defer func() {
		if recover() != nil {
			result = Continue
		}
	}()
	return fn()
}
