package compactor

import (
	"context"
	"strings"
	"testing"

	"github.com/gencode-labs/gencode/internal/client"
	"github.com/gencode-labs/gencode/internal/history"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/tests/integration/testutil"
)

func fill(l *history.Log, n int) {
	for i := 0; i < n; i++ {
		l.AppendUser(strings.Repeat("x", 400), nil)
	}
}

func TestShouldRun_BelowWatermark(t *testing.T) {
	l := history.New(nil)
	fill(l, 2)
	c := &Compactor{InputLimit: 100000}
	if c.ShouldRun(l) {
		t.Errorf("expected no compaction needed for a small log")
	}
}

func TestShouldRun_AboveWatermark(t *testing.T) {
	l := history.New(nil)
	fill(l, 50)
	c := &Compactor{InputLimit: 1000}
	if !c.ShouldRun(l) {
		t.Errorf("expected compaction needed once over the watermark")
	}
}

func TestRun_ReplacesOldPrefixKeepsRecent(t *testing.T) {
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		{Content: "summary of the old conversation"},
	}}
	l := history.New(nil)
	fill(l, 10)

	c := &Compactor{
		Client:     testutil.NewTestClient(fake),
		InputLimit: 1000,
		KeepRecent: 3,
	}

	outcome, err := c.Run(context.Background(), l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Ran {
		t.Fatalf("expected compaction to run")
	}
	if outcome.Summary != "summary of the old conversation" {
		t.Errorf("unexpected summary: %q", outcome.Summary)
	}

	msgs := l.Messages()
	if len(msgs) != 1+3 {
		t.Fatalf("expected 1 summary + 3 kept messages, got %d", len(msgs))
	}
	if msgs[0].Role != message.RoleSummary {
		t.Errorf("expected first message to be a summary, got role %q", msgs[0].Role)
	}
}

func TestRun_NoOpWhenLogSmallerThanKeepRecent(t *testing.T) {
	fake := &client.FakeClient{}
	l := history.New(nil)
	fill(l, 2)

	c := &Compactor{Client: testutil.NewTestClient(fake), InputLimit: 1000, KeepRecent: 10}

	outcome, err := c.Run(context.Background(), l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Ran {
		t.Errorf("expected no-op when log is smaller than KeepRecent")
	}
	if len(fake.Calls) != 0 {
		t.Errorf("expected no LLM call, got %d", len(fake.Calls))
	}
}

func TestRun_NeverOrphansAToolResult(t *testing.T) {
	fake := &client.FakeClient{Responses: []message.CompletionResponse{
		{Content: "summary"},
	}}
	l := history.New(nil)
	l.AppendUser(strings.Repeat("x", 400), nil)
	l.AppendUser(strings.Repeat("x", 400), nil)
	l.AppendAssistantWithTools("", "", []message.ToolCall{
		{ID: "a", Name: "Read"},
		{ID: "b", Name: "Read"},
	})
	l.AppendToolResult(message.ToolResult{ToolCallID: "a", ToolName: "Read", Content: "file a"})
	l.AppendToolResult(message.ToolResult{ToolCallID: "b", ToolName: "Read", Content: "file b"})
	l.AppendUser(strings.Repeat("x", 400), nil)
	l.AppendUser(strings.Repeat("x", 400), nil)
	l.AppendUser(strings.Repeat("x", 400), nil)

	c := &Compactor{
		Client:     testutil.NewTestClient(fake),
		InputLimit: 1000,
		KeepRecent: 4,
	}

	outcome, err := c.Run(context.Background(), l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Ran {
		t.Fatalf("expected compaction to run")
	}

	// Every surviving tool result's call must still be present among the
	// surviving assistant messages; a naive count-based boundary would
	// summarize the assistant away while keeping only the second result.
	owningCalls := make(map[string]bool)
	for _, m := range l.Messages() {
		if m.Role == message.RoleAssistant {
			for _, tc := range m.ToolCalls {
				owningCalls[tc.ID] = true
			}
		}
	}
	for _, m := range l.Messages() {
		if m.ToolResult != nil && !owningCalls[m.ToolResult.ToolCallID] {
			t.Errorf("tool result for call %q survived compaction with no owning assistant message", m.ToolResult.ToolCallID)
		}
	}
}

func TestMaybeRun_SkipsWhenUnderWatermark(t *testing.T) {
	fake := &client.FakeClient{}
	l := history.New(nil)
	fill(l, 2)

	c := &Compactor{Client: testutil.NewTestClient(fake), InputLimit: 100000, KeepRecent: 1}

	outcome, err := c.MaybeRun(context.Background(), l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Ran {
		t.Errorf("expected MaybeRun to skip below watermark")
	}
}
