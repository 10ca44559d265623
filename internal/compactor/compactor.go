// Package compactor implements the Context Compressor: it watches a
// history.Log's estimated token usage against the model's input limit and,
// once the high-watermark is crossed, replaces the oldest portion of the
// log with a single generated summary message while keeping the most
// recent turns verbatim.
package compactor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gencode-labs/gencode/internal/client"
	"github.com/gencode-labs/gencode/internal/history"
	"github.com/gencode-labs/gencode/internal/log"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/system"
)

// Outcome reports what a compaction pass did.
type Outcome struct {
	Ran          bool
	BeforeTokens int
	AfterTokens  int
	Saved        int
	Summary      string
}

// Compactor drives automatic context compression for a history.Log.
type Compactor struct {
	Client *client.Client

	// HighWatermark is the fraction of InputLimit (0..1) that triggers a
	// compaction pass. Zero uses message.NeedsCompactionAt's 0.95 default.
	HighWatermark float64

	// InputLimit is the model's input token budget used to evaluate
	// HighWatermark. Required for ShouldRun/MaybeRun to trigger.
	InputLimit int

	// KeepRecent is how many of the most recent messages are always kept
	// verbatim, never summarized.
	KeepRecent int

	// KeepRecentMin is the floor KeepRecent is allowed to shrink to when a
	// first compaction attempt still leaves the log over budget.
	KeepRecentMin int

	// Focus, if set, is appended to the summarization request to bias the
	// summary toward a particular topic (e.g. the active task).
	Focus string
}

// ShouldRun reports whether the log's current estimated usage warrants a
// compaction pass.
func (c *Compactor) ShouldRun(l *history.Log) bool {
	if c.InputLimit <= 0 {
		return false
	}
	watermark := c.HighWatermark
	if watermark <= 0 {
		watermark = 0.95
	}
	return message.NeedsCompactionAt(l.EstimateTokens(), c.InputLimit, watermark)
}

// Run summarizes everything in l older than KeepRecent messages and
// replaces it with a single summary message. If the resulting log is
// still over budget (a very verbose recent window), it retries once with
// KeepRecentMin in place of KeepRecent before giving up.
func (c *Compactor) Run(ctx context.Context, l *history.Log) (Outcome, error) {
	before := l.EstimateTokens()

	outcome, err := c.runOnce(ctx, l, c.KeepRecent)
	if err != nil {
		return Outcome{}, err
	}

	if c.InputLimit > 0 && c.KeepRecentMin > 0 && c.KeepRecentMin < c.KeepRecent &&
		message.NeedsCompactionAt(l.EstimateTokens(), c.InputLimit, c.watermarkOrDefault()) {
		log.Logger().Warn("compaction still over budget after first pass, retrying with a smaller keep-recent window",
			zap.Int("keep_recent", c.KeepRecent), zap.Int("keep_recent_min", c.KeepRecentMin))
		outcome, err = c.runOnce(ctx, l, c.KeepRecentMin)
		if err != nil {
			return Outcome{}, err
		}
	}

	outcome.BeforeTokens = before
	outcome.AfterTokens = l.EstimateTokens()
	outcome.Saved = outcome.BeforeTokens - outcome.AfterTokens
	return outcome, nil
}

func (c *Compactor) watermarkOrDefault() float64 {
	if c.HighWatermark <= 0 {
		return 0.95
	}
	return c.HighWatermark
}

// Watermark is the exported form of watermarkOrDefault, so a caller
// holding an independent usage ratio (core.TokenMeter's cumulative
// input+output accounting, as opposed to this package's live buffer
// estimate) can compare against the same threshold.
func (c *Compactor) Watermark() float64 {
	return c.watermarkOrDefault()
}

func (c *Compactor) runOnce(ctx context.Context, l *history.Log, keepRecent int) (Outcome, error) {
	boundary := l.KeepRecentSeq(keepRecent)
	if boundary < 0 {
		return Outcome{}, nil
	}

	var toSummarize []message.Message
	for _, m := range l.Messages() {
		if m.Seq <= boundary {
			toSummarize = append(toSummarize, m)
		}
	}
	if len(toSummarize) == 0 {
		return Outcome{}, nil
	}

	summary, err := summarize(ctx, c.Client, toSummarize, c.Focus)
	if err != nil {
		return Outcome{}, fmt.Errorf("compaction failed: %w", err)
	}

	l.ReplacePrefixWithSummary(boundary, summary)

	return Outcome{Ran: true, Summary: summary}, nil
}

// MaybeRun runs a compaction pass only if ShouldRun reports the log is
// over the high-watermark; otherwise it is a no-op.
func (c *Compactor) MaybeRun(ctx context.Context, l *history.Log) (Outcome, error) {
	if !c.ShouldRun(l) {
		return Outcome{}, nil
	}
	return c.Run(ctx, l)
}

// summarize sends msgs to the model with the shared compact prompt and
// returns the generated summary text. Kept local (rather than reusing
// core.Compact) so this package does not import internal/core, which
// itself imports compactor to drive Session's compaction hooks.
func summarize(ctx context.Context, c *client.Client, msgs []message.Message, focus string) (string, error) {
	conversationText := message.BuildConversationText(msgs)
	if focus != "" {
		conversationText += fmt.Sprintf("\n\n**Important**: Focus the summary on: %s", focus)
	}

	response, err := c.Complete(ctx,
		system.CompactPrompt(),
		[]message.Message{message.UserMessage(conversationText, nil)},
		2048,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	return strings.TrimSpace(response.Content), nil
}
