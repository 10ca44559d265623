// Package history wraps the flat []message.Message conversation log with
// the bookkeeping the spec's Message History component needs on top of
// what core.Loop's bare slice already gives the TUI: sequence numbers,
// turn indices, timestamps and a token estimate per message, plus
// compaction-prefix replacement.
package history

import (
	"time"

	"github.com/gencode-labs/gencode/internal/message"
)

// Tokenizer estimates the token cost of a message's content. The default
// is a cheap chars/4 heuristic; callers may plug in a provider-accurate
// tokenizer.
type Tokenizer interface {
	Estimate(role message.Role, content string) int
}

type heuristicTokenizer struct{}

func (heuristicTokenizer) Estimate(_ message.Role, content string) int {
	if len(content) == 0 {
		return 0
	}
	return len(content)/4 + 1
}

// DefaultTokenizer is the chars/4 heuristic used when a Log is not given
// an explicit Tokenizer.
var DefaultTokenizer Tokenizer = heuristicTokenizer{}

// Log is an append-only, sequence-numbered message history.
type Log struct {
	messages  []message.Message
	nextSeq   int64
	turn      int
	tokenizer Tokenizer
}

// New returns an empty Log using tokenizer, or DefaultTokenizer if nil.
func New(tokenizer Tokenizer) *Log {
	if tokenizer == nil {
		tokenizer = DefaultTokenizer
	}
	return &Log{tokenizer: tokenizer, nextSeq: 1}
}

// FromMessages adopts an existing slice (e.g. loaded from a stored
// session), assigning sequence numbers to any entries that lack one.
func FromMessages(msgs []message.Message, tokenizer Tokenizer) *Log {
	l := New(tokenizer)
	var maxSeq int64
	for _, m := range msgs {
		if m.Seq > maxSeq {
			maxSeq = m.Seq
		}
	}
	l.nextSeq = maxSeq + 1
	for _, m := range msgs {
		if m.Seq == 0 {
			m.Seq = l.nextSeq
			l.nextSeq++
		}
		if m.Turn > l.turn {
			l.turn = m.Turn
		}
		l.messages = append(l.messages, m)
	}
	return l
}

func (l *Log) stamp(m *message.Message) {
	m.Seq = l.nextSeq
	l.nextSeq++
	m.Turn = l.turn
	m.Timestamp = time.Now()
	if m.EstTokens == 0 {
		m.EstTokens = l.tokenizer.Estimate(m.Role, m.Content)
	}
}

// NextTurn advances the turn counter; subsequent appends are tagged with
// the new turn index.
func (l *Log) NextTurn() int {
	l.turn++
	return l.turn
}

// CurrentTurn returns the active turn index.
func (l *Log) CurrentTurn() int { return l.turn }

// AppendUser appends a user message.
func (l *Log) AppendUser(content string, images []message.ImageData) message.Message {
	m := message.UserMessage(content, images)
	l.stamp(&m)
	l.messages = append(l.messages, m)
	return m
}

// AppendSystem appends a system (out-of-band) message, used for steering
// InjectContext and hook additionalContext.
func (l *Log) AppendSystem(content string) message.Message {
	m := message.SystemMessage(content)
	l.stamp(&m)
	l.messages = append(l.messages, m)
	return m
}

// AppendAssistantWithTools appends an assistant turn, recording any tool
// calls it issued; the invariant that every tool call is later answered
// in order is enforced by the Scheduler/Dispatcher, not here.
func (l *Log) AppendAssistantWithTools(content, thinking string, calls []message.ToolCall) message.Message {
	m := message.AssistantMessage(content, thinking, calls)
	l.stamp(&m)
	l.messages = append(l.messages, m)
	return m
}

// AppendToolResult appends a tool result, associated with its ToolCall by ID.
func (l *Log) AppendToolResult(r message.ToolResult) message.Message {
	m := message.ToolResultMessage(r)
	l.stamp(&m)
	l.messages = append(l.messages, m)
	return m
}

// Messages returns the live message slice; callers must not mutate it.
func (l *Log) Messages() []message.Message { return l.messages }

// Len returns the number of messages currently retained.
func (l *Log) Len() int { return len(l.messages) }

// EstimateTokens sums the cached per-message token estimate across the
// whole log.
func (l *Log) EstimateTokens() int {
	total := 0
	for _, m := range l.messages {
		total += m.EstTokens
	}
	return total
}

// ReplacePrefixWithSummary replaces every message with Seq <= uptoSeq with
// a single RoleSummary message covering that range, retaining everything
// after uptoSeq verbatim. It is the operation the Compressor calls after
// generating a summary.
func (l *Log) ReplacePrefixWithSummary(uptoSeq int64, text string) {
	var fromSeq int64
	if len(l.messages) > 0 {
		fromSeq = l.messages[0].Seq
	}

	var kept []message.Message
	for _, m := range l.messages {
		if m.Seq > uptoSeq {
			kept = append(kept, m)
		}
	}

	summary := message.SummaryMessage(text, fromSeq, uptoSeq)
	l.stamp(&summary)

	l.messages = append([]message.Message{summary}, kept...)
}

// SnapshotForModel returns the slice to send to the model: identical to
// Messages() today, kept as its own method so future redaction (e.g.
// stripping EstTokens/Timestamp bookkeeping fields the wire format
// doesn't need) has a single seam.
func (l *Log) SnapshotForModel() []message.Message {
	return l.messages
}

// KeepRecentSeq returns the Seq of the message that is keepRecent entries
// from the end, used by the Compressor to decide the compaction boundary
// (everything with Seq <= the returned value is eligible to be
// summarized; the rest is retained verbatim). The boundary is snapped
// backward, if needed, so it never separates an assistant message's
// tool_calls from their ToolResults.
func (l *Log) KeepRecentSeq(keepRecent int) int64 {
	if keepRecent <= 0 || len(l.messages) <= keepRecent {
		return -1
	}
	idx := len(l.messages) - keepRecent
	boundary := l.messages[idx].Seq - 1
	return l.pairSafeBoundary(boundary)
}

// pairSafeBoundary pulls boundary back until no assistant message with
// Seq <= boundary has a ToolResult sitting above it: summarizing the
// assistant's tool_calls away while its ToolResult survives in the kept
// suffix would otherwise leave that result orphaned, with nothing in the
// retained history explaining what it answered.
func (l *Log) pairSafeBoundary(boundary int64) int64 {
	if boundary < 0 {
		return boundary
	}

	resultSeq := make(map[string]int64)
	for _, m := range l.messages {
		if m.ToolResult != nil {
			resultSeq[m.ToolResult.ToolCallID] = m.Seq
		}
	}

	for {
		violated := false
		for _, m := range l.messages {
			if m.Seq > boundary {
				break
			}
			if m.Role != message.RoleAssistant || len(m.ToolCalls) == 0 {
				continue
			}
			for _, tc := range m.ToolCalls {
				if seq, ok := resultSeq[tc.ID]; ok && seq > boundary {
					boundary = m.Seq - 1
					violated = true
					break
				}
			}
			if violated {
				break
			}
		}
		if !violated {
			return boundary
		}
	}
}
