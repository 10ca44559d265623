package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gencode-labs/gencode/internal/client"
	"github.com/gencode-labs/gencode/internal/compactor"
	"github.com/gencode-labs/gencode/internal/hooks"
	"github.com/gencode-labs/gencode/internal/history"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/scheduler"
	"github.com/gencode-labs/gencode/internal/steering"
	"github.com/gencode-labs/gencode/internal/system"
	"github.com/gencode-labs/gencode/internal/tool"
)

// AgentEventType enumerates the outbound events a Session.Run stream
// emits, matching spec's AgentEvent variants.
type AgentEventType string

const (
	EventThinking     AgentEventType = "thinking"
	EventTextChunk    AgentEventType = "text_chunk"
	EventToolStart    AgentEventType = "tool_start"
	EventToolComplete AgentEventType = "tool_complete"
	EventTurnStart    AgentEventType = "turn_start"
	EventTurnEnd      AgentEventType = "turn_end"
	EventUsage        AgentEventType = "usage"
	EventCompressed   AgentEventType = "compressed"
	EventPaused       AgentEventType = "paused"
	EventResumed      AgentEventType = "resumed"
	EventStopped      AgentEventType = "stopped"
	EventDone         AgentEventType = "done"
	EventError        AgentEventType = "error"
)

// AgentEvent is one entry in the stream returned by Session.Run.
type AgentEvent struct {
	Type         AgentEventType
	Text         string
	ToolName     string
	ToolCallID   string
	Turn         int
	InputTokens  int
	OutputTokens int
	Before       int
	After        int
	Saved        int
	Success      bool
	DurationMs   int64
	Summary      string
	Reason       string
	FullResponse string
	ErrorKind    string
	Detail       string
}

// RunOutcomeKind is the terminal classification of a Session.Run call.
type RunOutcomeKind string

const (
	OutcomeCompleted RunOutcomeKind = "completed"
	OutcomeStopped   RunOutcomeKind = "stopped"
	OutcomeFailed    RunOutcomeKind = "failed"
)

// RunOutcome is delivered through the JoinResult once a run ends.
type RunOutcome struct {
	Kind   RunOutcomeKind
	Text   string
	Reason string
	Err    error
}

// RunErrorKind classifies a fatal RunOutcome.Err, matching spec's
// Structural/Model error taxonomy (Transient I/O is already resolved by
// client's retry wrapper before it ever reaches Session).
type RunErrorKind string

const (
	RunErrorModel             RunErrorKind = "model"
	RunErrorIterationLimit    RunErrorKind = "iteration_limit"
	RunErrorCompressionFailed RunErrorKind = "compression_failed"
)

// RunError wraps a fatal run-ending error with its structural kind.
type RunError struct {
	Kind RunErrorKind
	Err  error
}

func (e *RunError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *RunError) Unwrap() error { return e.Err }

// JoinResult is the Go analogue of spec's JoinHandle<RunOutcome>: a
// single-value future the caller awaits alongside draining the event
// channel.
type JoinResult struct {
	done chan RunOutcome
}

// Wait blocks until the run this JoinResult belongs to finishes.
func (j *JoinResult) Wait() RunOutcome { return <-j.done }

// SessionConfig assembles the collaborators a Session wires together.
type SessionConfig struct {
	System     *system.System
	Client     *client.Client
	Tools      *tool.Set
	Dispatcher scheduler.Dispatcher

	Compactor     *compactor.Compactor
	MaxIterations int
	ModelLimit    int

	// ShellHooks, if set, is given the PreTurn/PostTurn/PreCompact/
	// PostCompact events alongside the in-process hookSet, so a
	// shell-command hook configured for one of those event names actually
	// fires instead of silently never running.
	ShellHooks *hooks.Engine

	SchedulerMaxConcurrent int
	EventBufferSize        int
	Tokenizer              history.Tokenizer
}

// Session is the public-surface orchestrator from spec §6.1: it owns a
// Loop, a history.Log, a steering.Channel, and a TokenMeter, and drives
// the scheduler/compactor/hook additions around core.Loop's primitives.
type Session struct {
	cfg        SessionConfig
	loop       *Loop
	history    *history.Log
	steer      *steering.Channel
	meter      TokenMeter
	hooks      hookSet
	shellHooks *hooks.Engine
	timing     *timingDispatcher
}

// NewSession builds a Session from cfg. cfg.Dispatcher is wrapped to
// record per-call durations for ToolComplete events.
func NewSession(cfg SessionConfig) *Session {
	h := history.New(cfg.Tokenizer)
	tools := cfg.Tools
	if tools == nil {
		tools = &tool.Set{}
	}

	s := &Session{
		cfg: cfg,
		loop: &Loop{
			System: cfg.System,
			Client: cfg.Client,
			Tool:   tools,
		},
		history:    h,
		steer:      steering.New(),
		meter:      TokenMeter{ModelLimit: cfg.ModelLimit},
		shellHooks: cfg.ShellHooks,
	}
	if cfg.Dispatcher != nil {
		s.timing = &timingDispatcher{inner: cfg.Dispatcher, durations: make(map[string]time.Duration)}
	}
	return s
}

// RegisterHook adds h to the session's in-process hook set; h may
// implement any subset of the Before/After*Hook interfaces.
func (s *Session) RegisterHook(h any) {
	s.hooks.register(h)
}

// SteeringHandle returns the send-only producer view of the steering
// channel for this session.
func (s *Session) SteeringHandle() steering.Handle {
	return s.steer.Handle()
}

// HistorySnapshot returns the current conversation messages.
func (s *Session) HistorySnapshot() []message.Message {
	return s.history.Messages()
}

// SeedHistory replaces the session's history with msgs, rebuilding the
// sequence/turn bookkeeping history.FromMessages assigns. It is meant for
// reconstructing a Session from a persisted transcript (replay, compaction
// status checks) before calling Run or CompactNow; it must not be used
// once a run is already in flight.
func (s *Session) SeedHistory(msgs []message.Message) {
	s.history = history.FromMessages(msgs, s.cfg.Tokenizer)
}

// CompactNow runs a compaction pass immediately, outside the usual
// watermark check. Calling it twice in a row with no intervening
// messages is idempotent: the second call finds nothing eligible (the
// whole log now sits within KeepRecent) and is a no-op.
func (s *Session) CompactNow(ctx context.Context) (compactor.Outcome, error) {
	if s.cfg.Compactor == nil {
		return compactor.Outcome{}, nil
	}
	if r := s.hooks.beforeCompress(ctx); r.Action == HookStop {
		return compactor.Outcome{}, fmt.Errorf("compression blocked by hook: %s", r.Reason)
	}
	s.dispatchShellEvent(ctx, hooks.PreCompact, hooks.HookInput{})
	outcome, err := s.cfg.Compactor.Run(ctx, s.history)
	if err != nil {
		return compactor.Outcome{}, &RunError{Kind: RunErrorCompressionFailed, Err: err}
	}
	s.hooks.afterCompress(ctx, outcome)
	s.dispatchShellEvent(ctx, hooks.PostCompact, hooks.HookInput{})
	return outcome, nil
}

// dispatchShellEvent runs the shell-command hook Engine for event, if one
// is configured. It never influences control flow: the in-process
// hookSet (registered via RegisterHook) is the sole source of
// Stop/Block/Modify decisions, matching how PreToolUse/PostToolUse
// already split that responsibility between tool.Dispatcher's shell hooks
// and core's own hook interfaces.
func (s *Session) dispatchShellEvent(ctx context.Context, event hooks.EventType, input hooks.HookInput) {
	if s.shellHooks == nil {
		return
	}
	s.shellHooks.Execute(ctx, event, input)
}

// Run starts processing userInput and returns the event stream plus a
// JoinResult the caller awaits for the terminal RunOutcome. The returned
// channel is closed once the run ends, whatever the outcome.
func (s *Session) Run(ctx context.Context, userInput string) (<-chan AgentEvent, *JoinResult) {
	bufSize := s.cfg.EventBufferSize
	if bufSize <= 0 {
		bufSize = 64
	}
	events := make(chan AgentEvent, bufSize)
	join := &JoinResult{done: make(chan RunOutcome, 1)}

	s.history.AppendUser(userInput, nil)

	go func() {
		defer close(events)
		join.done <- s.runLoop(ctx, events)
	}()

	return events, join
}

func (s *Session) emit(events chan<- AgentEvent, ev AgentEvent) {
	events <- ev
}

// runLoop is the Go rendering of spec §4.8's run(user_input) algorithm.
func (s *Session) runLoop(ctx context.Context, events chan<- AgentEvent) RunOutcome {
	maxIter := s.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}

	for iter := 0; iter < maxIter; iter++ {
		if out, stopped := s.pollSteering(ctx, events); stopped {
			return out
		}

		s.maybeCompress(ctx, events)

		turn := s.history.NextTurn()
		if r := s.hooks.beforeTurn(ctx, turn); r.Action == HookStop {
			s.emit(events, AgentEvent{Type: EventStopped, Reason: r.Reason})
			return RunOutcome{Kind: OutcomeStopped, Reason: r.Reason}
		}
		s.dispatchShellEvent(ctx, hooks.PreTurn, hooks.HookInput{})
		s.emit(events, AgentEvent{Type: EventTurnStart, Turn: turn})

		s.loop.SetMessages(s.history.Messages())
		stream := s.loop.Stream(ctx)
		text, thinking, calls, usage, streamErr, stopOut, stopped := s.drainStream(ctx, events, stream)
		if stopped {
			s.emit(events, AgentEvent{Type: EventStopped, Reason: stopOut.Reason})
			return stopOut
		}
		if streamErr != nil {
			s.emit(events, AgentEvent{Type: EventError, ErrorKind: "model", Detail: streamErr.Error()})
			s.hooks.onError(ctx, streamErr)
			return RunOutcome{Kind: OutcomeFailed, Err: &RunError{Kind: RunErrorModel, Err: streamErr}}
		}

		if s.loop.Client != nil {
			s.loop.Client.AddUsage(usage)
		}
		s.meter.Add(usage.InputTokens, usage.OutputTokens)
		s.history.AppendAssistantWithTools(text, thinking, calls)
		s.emit(events, AgentEvent{Type: EventUsage, InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens})

		if r := s.hooks.afterTurn(ctx, turn, text); r.Action == HookStop {
			s.emit(events, AgentEvent{Type: EventStopped, Reason: r.Reason})
			return RunOutcome{Kind: OutcomeStopped, Reason: r.Reason}
		}
		s.dispatchShellEvent(ctx, hooks.PostTurn, hooks.HookInput{})
		s.emit(events, AgentEvent{Type: EventTurnEnd, Turn: turn})

		if len(calls) == 0 {
			s.emit(events, AgentEvent{Type: EventDone, FullResponse: text})
			return RunOutcome{Kind: OutcomeCompleted, Text: text}
		}

		results := s.execTools(ctx, events, calls)
		for _, r := range results {
			s.history.AppendToolResult(r)
		}
	}

	s.emit(events, AgentEvent{Type: EventError, ErrorKind: "iteration_limit"})
	return RunOutcome{Kind: OutcomeFailed, Err: &RunError{Kind: RunErrorIterationLimit, Err: fmt.Errorf("iteration limit exceeded after %d turns", maxIter)}}
}

// dueForCompaction reports whether either signal says the conversation
// needs compacting: the compactor's own live estimate of the history
// buffer, or the session's cumulative TokenMeter usage ratio crossing the
// same watermark (a long-running session can cross the cumulative ratio
// before its retained buffer does, once earlier turns have already been
// summarized away).
func (s *Session) dueForCompaction() bool {
	if s.cfg.Compactor == nil {
		return false
	}
	if s.cfg.Compactor.ShouldRun(s.history) {
		return true
	}
	return s.meter.ModelLimit > 0 && s.meter.UsageRatio() >= s.cfg.Compactor.Watermark()
}

func (s *Session) maybeCompress(ctx context.Context, events chan<- AgentEvent) {
	if !s.dueForCompaction() {
		return
	}
	if r := s.hooks.beforeCompress(ctx); r.Action == HookStop {
		return
	}
	s.dispatchShellEvent(ctx, hooks.PreCompact, hooks.HookInput{})
	outcome, err := s.cfg.Compactor.Run(ctx, s.history)
	if err != nil || !outcome.Ran {
		return
	}
	s.hooks.afterCompress(ctx, outcome)
	s.dispatchShellEvent(ctx, hooks.PostCompact, hooks.HookInput{})
	s.emit(events, AgentEvent{Type: EventCompressed, Before: outcome.BeforeTokens, After: outcome.AfterTokens, Saved: outcome.Saved})
}

// pollSteering drains every steering command currently available (and,
// if the channel is paused, blocks on the next one) applying each at
// this safe point. It returns (outcome, true) only when Stop was seen.
func (s *Session) pollSteering(ctx context.Context, events chan<- AgentEvent) (RunOutcome, bool) {
	for {
		cmd, ok := s.steer.Next()
		if !ok {
			if !s.steer.IsPaused() {
				return RunOutcome{}, false
			}
			cmd, ok = s.steer.Wait(ctx)
			if !ok {
				return RunOutcome{}, false
			}
		}

		switch cmd.Kind {
		case steering.CmdStop:
			return RunOutcome{Kind: OutcomeStopped, Reason: "stop requested"}, true
		case steering.CmdPause:
			s.emit(events, AgentEvent{Type: EventPaused})
		case steering.CmdResume:
			s.emit(events, AgentEvent{Type: EventResumed})
		case steering.CmdRedirect:
			s.history.AppendUser(cmd.Text, nil)
		case steering.CmdInjectContext:
			s.history.AppendSystem(cmd.Text)
		case steering.CmdQueryStatus:
			if cmd.Reply != nil {
				cmd.Reply <- steering.Status{Paused: s.steer.IsPaused(), Turn: s.history.CurrentTurn()}
			}
		}
	}
}

// drainStream forwards one LLM stream as AgentEvents, polling steering at
// each chunk boundary per spec §4.8.
func (s *Session) drainStream(ctx context.Context, events chan<- AgentEvent, stream <-chan message.StreamChunk) (
	text, thinking string, calls []message.ToolCall, usage message.Usage, err error, stopOut RunOutcome, stopped bool,
) {
	for chunk := range stream {
		if out, didStop := s.pollSteering(ctx, events); didStop {
			return text, thinking, calls, usage, nil, out, true
		}

		switch chunk.Type {
		case message.ChunkTypeText:
			text += chunk.Text
			s.emit(events, AgentEvent{Type: EventTextChunk, Text: chunk.Text})
		case message.ChunkTypeThinking:
			thinking += chunk.Text
			s.emit(events, AgentEvent{Type: EventThinking, Text: chunk.Text})
		case message.ChunkTypeToolStart:
			calls = append(calls, message.ToolCall{ID: chunk.ToolID, Name: chunk.ToolName})
		case message.ChunkTypeToolInput:
			if len(calls) > 0 {
				calls[len(calls)-1].Input += chunk.Text
			}
		case message.ChunkTypeDone:
			if chunk.Response != nil {
				if chunk.Response.Content != "" {
					text = chunk.Response.Content
				}
				if chunk.Response.Thinking != "" {
					thinking = chunk.Response.Thinking
				}
				if len(chunk.Response.ToolCalls) > 0 {
					calls = chunk.Response.ToolCalls
				}
				usage = chunk.Response.Usage
			}
		case message.ChunkTypeError:
			return text, thinking, calls, usage, chunk.Error, RunOutcome{}, false
		}
	}
	return text, thinking, calls, usage, nil, RunOutcome{}, false
}

// execTools resolves BeforeToolHook blocks/stops without dispatching, runs
// the rest through the scheduler under a single per-batch cancellation
// token, then applies AfterToolHook modifications and emits
// ToolStart/ToolComplete events around each call.
//
// The batch's ctx is sub-derived from the caller's ctx and cancelled the
// moment steering sees a Stop, so a tool already running when Stop is
// requested observes cancellation instead of running to completion.
func (s *Session) execTools(ctx context.Context, events chan<- AgentEvent, calls []message.ToolCall) []message.ToolResult {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.steer.Stopped():
			cancel()
		case <-batchCtx.Done():
		}
	}()

	results := make([]message.ToolResult, len(calls))
	var toRun []message.ToolCall
	runIdx := make(map[int]int)
	stoppedByHook := false

	for i, tc := range calls {
		if stoppedByHook {
			results[i] = *message.ErrorResult(tc, "cancelled: run stopped")
			continue
		}
		s.emit(events, AgentEvent{Type: EventToolStart, ToolName: tc.Name, ToolCallID: tc.ID})
		r := s.hooks.beforeTool(ctx, tc)
		switch r.Action {
		case HookBlock:
			if r.SyntheticResult != nil {
				results[i] = *r.SyntheticResult
			} else {
				results[i] = *message.ErrorResult(tc, "blocked by hook: "+r.Reason)
			}
			continue
		case HookStop:
			cancel()
			stoppedByHook = true
			results[i] = *message.ErrorResult(tc, "stopped by hook: "+r.Reason)
			continue
		case HookModify:
			if r.ModifiedInput != nil {
				if updated, err := json.Marshal(r.ModifiedInput); err == nil {
					tc.Input = string(updated)
				}
			}
		}
		runIdx[len(toRun)] = i
		toRun = append(toRun, tc)
	}

	if len(toRun) > 0 && s.timing != nil {
		batch := &scheduler.Batch{
			Dispatcher:    s.timing,
			MaxConcurrent: s.cfg.SchedulerMaxConcurrent,
			DeriveParams: func(tc message.ToolCall) map[string]any {
				p, _ := message.ParseToolInput(tc.Input)
				return p
			},
		}
		batchResults := batch.Execute(batchCtx, toRun)
		for j, r := range batchResults {
			results[runIdx[j]] = r
		}
	}

	for i, tc := range calls {
		r := results[i]
		if out := s.hooks.afterTool(ctx, tc, r); out.Action == HookModify && out.ModifiedText != "" {
			r.Content = out.ModifiedText
		}
		results[i] = r
		s.emit(events, AgentEvent{
			Type:       EventToolComplete,
			ToolName:   tc.Name,
			ToolCallID: tc.ID,
			Success:    !r.IsError,
			DurationMs: s.timing.durationMs(tc.ID),
			Summary:    summarize(r.Content),
		})
	}
	return results
}

func summarize(content string) string {
	line := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	const maxLen = 120
	if len(line) > maxLen {
		return line[:maxLen] + "…"
	}
	return line
}

// timingDispatcher wraps a scheduler.Dispatcher to record each call's
// wall-clock duration, keyed by tool-call ID, for ToolComplete events.
type timingDispatcher struct {
	inner scheduler.Dispatcher

	mu        sync.Mutex
	durations map[string]time.Duration
}

func (d *timingDispatcher) Dispatch(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	if d == nil || d.inner == nil {
		return message.ErrorResult(tc, "no dispatcher configured")
	}
	start := time.Now()
	result := d.inner.Dispatch(ctx, tc)
	elapsed := time.Since(start)

	d.mu.Lock()
	d.durations[tc.ID] = elapsed
	d.mu.Unlock()

	return result
}

func (d *timingDispatcher) durationMs(id string) int64 {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.durations[id].Milliseconds()
}
