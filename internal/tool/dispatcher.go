package tool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gencode-labs/gencode/internal/config"
	"github.com/gencode-labs/gencode/internal/hooks"
	"github.com/gencode-labs/gencode/internal/log"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/permission"
	"github.com/gencode-labs/gencode/internal/tool/ui"
)

// maxResultChars bounds how much of a tool's output is handed back to the
// model; past this the content is cut and a marker line explains why.
const maxResultChars = 30000

// DefaultTimeout bounds a single tool call when Dispatcher.Timeout is
// unset, matching config.ToolSettings' default.
const DefaultTimeout = 120 * time.Second

// deniedPrefix marks a ToolResult produced by a permission Deny verdict,
// distinguishing a policy refusal from any other tool failure for callers
// inspecting ToolResult.Content (e.g. the TUI, end-to-end assertions).
const deniedPrefix = "PermissionDenied: "

// Dispatcher is the single-call execution seam used both by core.Loop's
// sequential path and by scheduler.Batch's concurrent one: lookup tool,
// consult the permission engine, run the PreToolUse/PostToolUse hooks
// around a timed Execute, and truncate oversized output.
type Dispatcher struct {
	Engine   *permission.Engine
	Delegate permission.Delegate
	Hooks    *hooks.Engine
	Cwd      string

	// Persist, if set, is called when a delegate approves a Permanent-scope
	// grant, to write the rule into durable settings.
	Persist func(permission.Rule) error

	// Timeout bounds every call to a tool's Execute/ExecuteApproved method.
	// Zero uses DefaultTimeout.
	Timeout time.Duration
}

// NewDispatcher builds a Dispatcher with its Timeout resolved from
// settings.Tool.DefaultTimeoutSeconds (falling back to DefaultTimeout when
// unset or non-positive).
func NewDispatcher(settings *config.Settings, engine *permission.Engine, delegate permission.Delegate,
	hooksEngine *hooks.Engine, cwd string, persist func(permission.Rule) error) *Dispatcher {
	timeout := DefaultTimeout
	if settings != nil && settings.Tool.DefaultTimeoutSeconds > 0 {
		timeout = time.Duration(settings.Tool.DefaultTimeoutSeconds) * time.Second
	}
	return &Dispatcher{
		Engine:   engine,
		Delegate: delegate,
		Hooks:    hooksEngine,
		Cwd:      cwd,
		Persist:  persist,
		Timeout:  timeout,
	}
}

// Dispatch implements scheduler.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	params, err := message.ParseToolInput(tc.Input)
	if err != nil {
		return message.ErrorResult(tc, fmt.Sprintf("Error parsing tool input: %v", err))
	}

	if d.Hooks != nil {
		outcome := d.Hooks.Execute(ctx, hooks.PreToolUse, hooks.HookInput{
			ToolName:  tc.Name,
			ToolInput: params,
			ToolUseID: tc.ID,
		})
		if outcome.ShouldBlock {
			return message.ErrorResult(tc, "Blocked by hook: "+outcome.BlockReason)
		}
	}

	if d.Engine != nil {
		action := permission.DeriveAction(tc.Name, params)
		resp, err := d.Engine.Request(ctx, d.Delegate, tc.Name, action, d.Persist)
		if err != nil {
			return message.ErrorResult(tc, fmt.Sprintf("permission check failed: %v", err))
		}
		if !resp.Allowed() {
			return message.ErrorResult(tc, fmt.Sprintf("%sTool %s denied: %s", deniedPrefix, tc.Name, resp.Reason))
		}
	}

	result := d.execute(ctx, tc, params)

	if d.Hooks != nil {
		event := hooks.PostToolUse
		if result.IsError {
			event = hooks.PostToolUseFailure
		}
		outcome := d.Hooks.Execute(ctx, event, hooks.HookInput{
			ToolName:     tc.Name,
			ToolInput:    params,
			ToolUseID:    tc.ID,
			ToolResponse: result.Content,
		})
		if outcome.AdditionalContext != "" {
			result.Content += "\n\n" + outcome.AdditionalContext
		}
	}

	return result
}

func (d *Dispatcher) execute(ctx context.Context, tc message.ToolCall, params map[string]any) *message.ToolResult {
	t, ok := Get(tc.Name)
	if !ok {
		return message.ErrorResult(tc, fmt.Sprintf("Unknown tool: %s", tc.Name))
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var toolResult ui.ToolResult
	if pat, ok := t.(PermissionAwareTool); ok && pat.RequiresPermission() {
		toolResult = pat.ExecuteApproved(callCtx, params, d.Cwd)
	} else {
		toolResult = t.Execute(callCtx, params, d.Cwd)
	}
	elapsed := time.Since(start)

	if callCtx.Err() == context.DeadlineExceeded && toolResult.Success {
		return message.ErrorResult(tc, fmt.Sprintf("tool %s timed out after %s", tc.Name, timeout))
	}

	log.Logger().Debug("tool executed",
		zap.String("tool", tc.Name),
		zap.Bool("success", toolResult.Success),
		zap.Duration("elapsed", elapsed),
	)

	content := toolResult.FormatForLLM()
	if len(content) > maxResultChars {
		content = ui.TruncateText(content, maxResultChars) +
			fmt.Sprintf("\n\n[output truncated: %d chars omitted]", len(content)-maxResultChars)
	}

	return &message.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    content,
		IsError:    !toolResult.Success,
	}
}
