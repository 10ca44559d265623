package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gencode-labs/gencode/internal/client"
	"github.com/gencode-labs/gencode/internal/compactor"
	"github.com/gencode-labs/gencode/internal/core"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/provider"
	gensession "github.com/gencode-labs/gencode/internal/session"
	"github.com/gencode-labs/gencode/internal/system"
)

// defaultModelLimit is used when a stored session doesn't carry enough
// provider metadata to look up the real context window. It only affects
// the compaction-eligibility estimate `gen session status` reports, not
// any behavior that touches the session file on disk.
const defaultModelLimit = 200000

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect sessions stored in ~/.gen/sessions",
}

var sessionReplayCmd = &cobra.Command{
	Use:   "replay [session-id]",
	Short: "Print a stored session's conversation",
	Long: `Replay reconstructs a Session's message history from disk and
prints it turn by turn. With no session-id, replays the most recently
updated session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := loadStoredSession(args)
		if err != nil {
			return err
		}

		fmt.Printf("session %s (%s, %d messages)\n", stored.Metadata.ID, stored.Metadata.Title, len(stored.Messages))
		for _, m := range stored.Messages {
			printStoredMessage(m)
		}
		return nil
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Report token usage and run a compaction pass over a stored session",
	Long: `Status rebuilds an in-memory Session from the stored conversation and
runs CompactNow against it, reporting whether compaction fired and how
many tokens it freed. The stored file on disk is never modified.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := loadStoredSession(args)
		if err != nil {
			return err
		}

		ctx := context.Background()
		llmProvider, model, err := connectedProvider(ctx)
		if err != nil {
			return err
		}

		sess := core.NewSession(core.SessionConfig{
			System: &system.System{Cwd: stored.Metadata.Cwd},
			Client: &client.Client{Provider: llmProvider, Model: model},
			Compactor: &compactor.Compactor{
				Client:        &client.Client{Provider: llmProvider, Model: model},
				InputLimit:    defaultModelLimit,
				KeepRecent:    10,
				KeepRecentMin: 4,
			},
			ModelLimit: defaultModelLimit,
		})
		seedHistory(sess, stored)

		snapshot := sess.HistorySnapshot()
		before := estimateTokens(snapshot)
		fmt.Printf("session %s: %d messages, ~%d tokens (limit %d)\n",
			stored.Metadata.ID, len(snapshot), before, defaultModelLimit)

		outcome, err := sess.CompactNow(ctx)
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}
		if !outcome.Ran {
			fmt.Println("compaction: not eligible (conversation fits within keep-recent window)")
			return nil
		}
		fmt.Printf("compaction: ran, %d -> %d tokens (saved %d)\n", outcome.BeforeTokens, outcome.AfterTokens, outcome.Saved)
		return nil
	},
}

func loadStoredSession(args []string) (*gensession.Session, error) {
	store, err := gensession.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if len(args) == 1 {
		return store.Load(args[0])
	}
	return store.GetLatest()
}

// seedHistory translates a persisted transcript into history's canonical
// message shape and loads it into sess via Session.SeedHistory, so
// `gen session status` evaluates compaction against the real conversation
// on disk rather than a synthetic one.
func seedHistory(sess *core.Session, stored *gensession.Session) {
	msgs := make([]message.Message, 0, len(stored.Messages))
	for _, m := range stored.Messages {
		switch {
		case m.IsSummary:
			msgs = append(msgs, message.SummaryMessage(m.Content, 0, 0))
		case m.ToolResult != nil:
			msgs = append(msgs, message.ToolResultMessage(message.ToolResult{
				ToolCallID: m.ToolResult.ToolCallID,
				ToolName:   m.ToolName,
				Content:    m.Content,
				IsError:    m.ToolResult.IsError,
			}))
		case message.Role(m.Role) == message.RoleAssistant:
			msgs = append(msgs, message.AssistantMessage(m.Content, m.Thinking, nil))
		default:
			msgs = append(msgs, message.UserMessage(m.Content, nil))
		}
	}
	sess.SeedHistory(msgs)
}

func estimateTokens(msgs []message.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content) / 4
	}
	return total
}

func printStoredMessage(m gensession.StoredMessage) {
	switch {
	case m.IsSummary:
		fmt.Printf("[summary] %s\n", m.Content)
	case m.ToolResult != nil:
		fmt.Printf("[tool:%s] %s\n", m.ToolName, m.Content)
	default:
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}
}

func connectedProvider(ctx context.Context) (provider.LLMProvider, string, error) {
	store, err := provider.NewStore()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load provider store: %w", err)
	}

	if current := store.GetCurrentModel(); current != nil {
		p, err := provider.GetProvider(ctx, current.Provider, current.AuthMethod)
		if err == nil {
			return p, current.ModelID, nil
		}
	}
	for providerName, conn := range store.GetConnections() {
		p, err := provider.GetProvider(ctx, provider.Provider(providerName), conn.AuthMethod)
		if err == nil {
			return p, getDefaultModel(providerName, conn.AuthMethod), nil
		}
	}
	return nil, "", fmt.Errorf("no provider connected. Run 'gen' and use /provider to connect")
}

func init() {
	sessionCmd.AddCommand(sessionReplayCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}
