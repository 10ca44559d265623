package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gencode-labs/gencode/internal/message"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	started []string
	delay   time.Duration
}

func (d *recordingDispatcher) Dispatch(_ context.Context, tc message.ToolCall) *message.ToolResult {
	d.mu.Lock()
	d.started = append(d.started, tc.ID)
	d.mu.Unlock()
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return &message.ToolResult{ToolCallID: tc.ID, ToolName: tc.Name, Content: "ok:" + tc.ID}
}

func TestExecute_PreservesInputOrderDespiteConcurrency(t *testing.T) {
	d := &recordingDispatcher{delay: 5 * time.Millisecond}
	calls := []message.ToolCall{
		{ID: "c1", Name: "Read", Input: `{"file_path":"a.txt"}`},
		{ID: "c2", Name: "Read", Input: `{"file_path":"b.txt"}`},
		{ID: "c3", Name: "Read", Input: `{"file_path":"c.txt"}`},
	}
	b := &Batch{Dispatcher: d, DeriveParams: paramsOf}

	results := b.Execute(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		want := fmt.Sprintf("ok:c%d", i+1)
		if r.Content != want {
			t.Errorf("result[%d] = %q, want %q (order not preserved)", i, r.Content, want)
		}
	}
}

func TestLevelize_WriteBlocksLaterRead(t *testing.T) {
	calls := []message.ToolCall{
		{ID: "write", Name: "Write", Input: `{"file_path":"x.txt"}`},
		{ID: "read", Name: "Read", Input: `{"file_path":"x.txt"}`},
	}
	d := &recordingDispatcher{}
	b := &Batch{Dispatcher: d, DeriveParams: paramsOf}

	b.Execute(context.Background(), calls)

	if len(d.started) != 2 || d.started[0] != "write" || d.started[1] != "read" {
		t.Errorf("expected write before read, got %v", d.started)
	}
}

func TestLevelize_IndependentReadsRunConcurrently(t *testing.T) {
	calls := []message.ToolCall{
		{ID: "r1", Name: "Read", Input: `{"file_path":"a.txt"}`},
		{ID: "r2", Name: "Read", Input: `{"file_path":"b.txt"}`},
	}
	items := make([]item, len(calls))
	for i, c := range calls {
		items[i] = item{index: i, call: c, paths: PathsOf(c.Name, paramsOf(c))}
	}
	levels := levelize(items)
	if len(levels) != 1 {
		t.Errorf("expected independent reads in a single level, got %d levels", len(levels))
	}
}

func TestExecute_PanicBecomesInternalErrorResult(t *testing.T) {
	calls := []message.ToolCall{{ID: "boom", Name: "Bash", Input: `{"command":"whatever"}`}}
	b := &Batch{Dispatcher: panicDispatcher{}, DeriveParams: paramsOf}

	results := b.Execute(context.Background(), calls)

	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected a single error result, got %+v", results)
	}
}

type panicDispatcher struct{}

func (panicDispatcher) Dispatch(context.Context, message.ToolCall) *message.ToolResult {
	panic("tool blew up")
}

func TestExecute_CancelledContextProducesCancelledResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := []message.ToolCall{{ID: "c1", Name: "Read", Input: `{"file_path":"a.txt"}`}}
	b := &Batch{Dispatcher: &recordingDispatcher{}, DeriveParams: paramsOf}

	results := b.Execute(ctx, calls)
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected cancelled error result, got %+v", results)
	}
}

func paramsOf(tc message.ToolCall) map[string]any {
	params, _ := message.ParseToolInput(tc.Input)
	return params
}
