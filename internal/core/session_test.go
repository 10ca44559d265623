package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gencode-labs/gencode/internal/client"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/system"
	"github.com/gencode-labs/gencode/internal/tool"
	"github.com/gencode-labs/gencode/tests/integration/testutil"
)

func drain(t *testing.T, events <-chan AgentEvent) []AgentEvent {
	t.Helper()
	var got []AgentEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestSession_SimpleAnswerNoTools(t *testing.T) {
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		testutil.EndTurnResponse("4"),
	}}
	s := NewSession(SessionConfig{
		System: &system.System{Cwd: t.TempDir()},
		Client: testutil.NewTestClient(fake),
	})

	events, join := s.Run(context.Background(), "What is 2+2?")
	got := drain(t, events)
	outcome := join.Wait()

	if outcome.Kind != OutcomeCompleted || outcome.Text != "4" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(got) == 0 || got[0].Type != EventTurnStart {
		t.Fatalf("expected first event to be turn_start, got %+v", got)
	}
	last := got[len(got)-1]
	if last.Type != EventDone || last.FullResponse != "4" {
		t.Fatalf("expected last event done(\"4\"), got %+v", last)
	}

	snapshot := s.HistorySnapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected user+assistant in history, got %d messages", len(snapshot))
	}
	if snapshot[1].Role != message.RoleAssistant || snapshot[1].Content != "4" {
		t.Errorf("unexpected assistant message: %+v", snapshot[1])
	}
}

func TestSession_ToolCallThenEndTurn(t *testing.T) {
	testutil.RegisterFakeTool(t, "Echo", "echoed")
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		testutil.ToolCallResponse("Echo", "call1", `{}`),
		testutil.EndTurnResponse("done"),
	}}
	s := NewSession(SessionConfig{
		System:     &system.System{Cwd: t.TempDir()},
		Client:     testutil.NewTestClient(fake),
		Dispatcher: &tool.Dispatcher{},
	})

	events, join := s.Run(context.Background(), "echo something")
	got := drain(t, events)
	outcome := join.Wait()

	if outcome.Kind != OutcomeCompleted || outcome.Text != "done" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	var sawToolComplete bool
	for _, ev := range got {
		if ev.Type == EventToolComplete {
			sawToolComplete = true
			if !ev.Success {
				t.Errorf("expected tool call to succeed")
			}
		}
	}
	if !sawToolComplete {
		t.Errorf("expected a tool_complete event, got %+v", got)
	}

	snapshot := s.HistorySnapshot()
	var sawToolResult bool
	for _, m := range snapshot {
		if m.ToolResult != nil {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Errorf("expected a tool result message in history")
	}
}

func TestSession_StopBeforeRunShortCircuits(t *testing.T) {
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		testutil.EndTurnResponse("should never be reached"),
	}}
	s := NewSession(SessionConfig{
		System: &system.System{Cwd: t.TempDir()},
		Client: testutil.NewTestClient(fake),
	})

	s.SteeringHandle().Stop()

	events, join := s.Run(context.Background(), "hello")
	got := drain(t, events)
	outcome := join.Wait()

	if outcome.Kind != OutcomeStopped {
		t.Fatalf("expected Stopped outcome, got %+v", outcome)
	}
	for _, ev := range got {
		if ev.Type == EventTurnStart {
			t.Fatalf("expected no turn_start after an early Stop, got %+v", got)
		}
	}

	again := s.SteeringHandle()
	again.Redirect("ignored")
	if !s.steer.IsStopped() {
		t.Errorf("expected steering channel to remain stopped")
	}
}

func TestSession_PauseBlocksUntilResume(t *testing.T) {
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		testutil.EndTurnResponse("resumed answer"),
	}}
	s := NewSession(SessionConfig{
		System: &system.System{Cwd: t.TempDir()},
		Client: testutil.NewTestClient(fake),
	})

	handle := s.SteeringHandle()
	handle.Pause()

	events, join := s.Run(context.Background(), "hello")

	resumed := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		handle.Resume()
		close(resumed)
	}()

	got := drain(t, events)
	outcome := join.Wait()

	select {
	case <-resumed:
	default:
		t.Fatalf("Run completed before Resume was sent")
	}
	if outcome.Kind != OutcomeCompleted || outcome.Text != "resumed answer" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	var sawPaused, sawResumed bool
	for _, ev := range got {
		if ev.Type == EventPaused {
			sawPaused = true
		}
		if ev.Type == EventResumed {
			sawResumed = true
		}
	}
	if !sawPaused || !sawResumed {
		t.Errorf("expected both paused and resumed events, got %+v", got)
	}
}

// stopOnSecond is a BeforeToolHook that asks the session to stop once it
// sees the named tool call, leaving every earlier call in the batch to
// run normally.
type stopOnSecond struct {
	toolName string
}

func (h stopOnSecond) BeforeTool(_ context.Context, tc message.ToolCall) HookResult {
	if tc.Name == h.toolName {
		return HookResult{Action: HookStop, Reason: "stopping before " + h.toolName}
	}
	return Continue
}

func TestSession_BeforeToolHookStopCancelsRestOfBatch(t *testing.T) {
	testutil.RegisterFakeTool(t, "First", "first ran")
	testutil.RegisterFakeTool(t, "Second", "second ran")
	testutil.RegisterFakeTool(t, "Third", "third ran")
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		testutil.MultiToolCallResponse(
			message.ToolCall{ID: "call1", Name: "First", Input: `{}`},
			message.ToolCall{ID: "call2", Name: "Second", Input: `{}`},
			message.ToolCall{ID: "call3", Name: "Third", Input: `{}`},
		),
		testutil.EndTurnResponse("done"),
	}}
	s := NewSession(SessionConfig{
		System:     &system.System{Cwd: t.TempDir()},
		Client:     testutil.NewTestClient(fake),
		Dispatcher: &tool.Dispatcher{},
	})
	s.RegisterHook(stopOnSecond{toolName: "Second"})

	events, join := s.Run(context.Background(), "run three tools")
	got := drain(t, events)
	_ = join.Wait()

	var toolResults []message.ToolResult
	for _, m := range s.HistorySnapshot() {
		if m.ToolResult != nil {
			toolResults = append(toolResults, *m.ToolResult)
		}
	}
	if len(toolResults) != 3 {
		t.Fatalf("expected 3 tool results recorded, got %d: %+v", len(toolResults), toolResults)
	}
	byID := make(map[string]message.ToolResult, 3)
	for _, r := range toolResults {
		byID[r.ToolCallID] = r
	}
	if byID["call2"].IsError == false || !strings.Contains(byID["call2"].Content, "stopped by hook") {
		t.Errorf("expected call2 to be stopped by the hook, got %+v", byID["call2"])
	}
	if !byID["call3"].IsError || !strings.Contains(byID["call3"].Content, "cancelled: run stopped") {
		t.Errorf("expected call3 to be marked cancelled once the batch was stopped, got %+v", byID["call3"])
	}

	var sawFailedComplete bool
	for _, ev := range got {
		if ev.Type == EventToolComplete && (ev.ToolCallID == "call2" || ev.ToolCallID == "call3") && ev.Success {
			t.Errorf("expected tool_complete for %s to report failure, got %+v", ev.ToolCallID, ev)
		}
		if ev.Type == EventToolComplete && ev.ToolCallID == "call3" {
			sawFailedComplete = true
		}
	}
	if !sawFailedComplete {
		t.Errorf("expected a tool_complete event for the cancelled call3, got %+v", got)
	}
}

// blockingDispatcher never returns on its own; it only unblocks when ctx
// is cancelled, letting a test observe that a steering Stop mid-batch
// actually reaches the in-flight tool call instead of only the calls
// that have not started yet.
type blockingDispatcher struct{}

func (blockingDispatcher) Dispatch(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	<-ctx.Done()
	return message.ErrorResult(tc, "cancelled: "+ctx.Err().Error())
}

func TestSession_StopCancelsInFlightToolBatch(t *testing.T) {
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		testutil.ToolCallResponse("Slow", "call1", `{}`),
		testutil.EndTurnResponse("should not be reached"),
	}}
	s := NewSession(SessionConfig{
		System:     &system.System{Cwd: t.TempDir()},
		Client:     testutil.NewTestClient(fake),
		Dispatcher: blockingDispatcher{},
	})
	handle := s.SteeringHandle()

	events, join := s.Run(context.Background(), "run something slow")
	go func() {
		time.Sleep(20 * time.Millisecond)
		handle.Stop()
	}()

	got := drain(t, events)
	_ = join.Wait()

	var result *message.ToolResult
	for _, m := range s.HistorySnapshot() {
		if m.ToolResult != nil {
			result = m.ToolResult
		}
	}
	if result == nil {
		t.Fatalf("expected a tool result in history, got %+v", got)
	}
	if !result.IsError || !strings.Contains(result.Content, "cancelled") {
		t.Errorf("expected the in-flight tool call to observe cancellation, got %+v", result)
	}
}

func TestSession_CompactNowWithoutCompactorIsNoOp(t *testing.T) {
	s := NewSession(SessionConfig{
		System: &system.System{Cwd: t.TempDir()},
		Client: testutil.NewTestClient(&client.FakeClient{}),
	})

	before := s.HistorySnapshot()
	outcome, err := s.CompactNow(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Ran {
		t.Errorf("expected no-op compaction with no Compactor configured")
	}
	after := s.HistorySnapshot()
	if len(before) != len(after) {
		t.Errorf("expected history unchanged, before=%d after=%d", len(before), len(after))
	}
}
