package history

import (
	"testing"

	"github.com/gencode-labs/gencode/internal/message"
)

// buildWithToolPair seeds a log with: two plain user turns, an assistant
// message issuing two tool calls, the two matching tool results, then
// three more plain turns. It returns the log alongside the Seq of the
// assistant message, for tests to assert the boundary never falls inside
// the assistant/result span.
func buildWithToolPair(t *testing.T) (*Log, int64) {
	t.Helper()
	l := New(nil)
	l.AppendUser("hi", nil)
	l.AppendUser("hello", nil)
	asst := l.AppendAssistantWithTools("", "", []message.ToolCall{
		{ID: "a", Name: "Read"},
		{ID: "b", Name: "Read"},
	})
	l.AppendToolResult(message.ToolResult{ToolCallID: "a", ToolName: "Read", Content: "file a"})
	l.AppendToolResult(message.ToolResult{ToolCallID: "b", ToolName: "Read", Content: "file b"})
	l.AppendUser("ok", nil)
	l.AppendUser("next", nil)
	l.AppendUser("done", nil)
	return l, asst.Seq
}

func TestKeepRecentSeq_SnapsBackOverToolResultSplit(t *testing.T) {
	l, asstSeq := buildWithToolPair(t)

	// keepRecent=4 walks the naive boundary to right after the first tool
	// result, splitting the assistant message from its second result.
	boundary := l.KeepRecentSeq(4)

	if boundary >= asstSeq {
		t.Fatalf("boundary %d must fall before the assistant message (seq %d) that owns the split tool result", boundary, asstSeq)
	}

	for _, m := range l.Messages() {
		if m.Role != message.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		if m.Seq > boundary {
			continue
		}
		for _, tc := range m.ToolCalls {
			for _, r := range l.Messages() {
				if r.ToolResult != nil && r.ToolResult.ToolCallID == tc.ID && r.Seq > boundary {
					t.Fatalf("tool call %s summarized away but its result (seq %d) survives past boundary %d", tc.ID, r.Seq, boundary)
				}
			}
		}
	}
}

func TestKeepRecentSeq_NoToolCallsUnaffected(t *testing.T) {
	l := New(nil)
	for i := 0; i < 8; i++ {
		l.AppendUser("msg", nil)
	}
	if got := l.KeepRecentSeq(3); got != 5 {
		t.Errorf("expected naive boundary 5 with no tool-call pairs to protect, got %d", got)
	}
}

func TestKeepRecentSeq_BelowThreshold(t *testing.T) {
	l := New(nil)
	l.AppendUser("msg", nil)
	if got := l.KeepRecentSeq(5); got != -1 {
		t.Errorf("expected -1 when log is smaller than keepRecent, got %d", got)
	}
}
