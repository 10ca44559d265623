package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gencode-labs/gencode/internal/config"
	"github.com/gencode-labs/gencode/internal/message"
	"github.com/gencode-labs/gencode/internal/permission"
	"github.com/gencode-labs/gencode/internal/risk"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func readCall(path string) message.ToolCall {
	return message.ToolCall{ID: "tc1", Name: "Read", Input: fmt.Sprintf(`{"file_path":%q}`, path)}
}

func TestDispatcher_AllowsSafeRead(t *testing.T) {
	path := writeTempFile(t, "hello world\n")
	d := &Dispatcher{Engine: permission.NewEngine(&config.Settings{})}

	result := d.Dispatch(context.Background(), readCall(path))

	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello world") {
		t.Errorf("expected file content in result, got: %s", result.Content)
	}
}

func TestDispatcher_DeniesOnDenyRule(t *testing.T) {
	path := writeTempFile(t, "secret\n")
	settings := &config.Settings{}
	settings.Permissions.Deny = []string{"Read(**)"}
	d := &Dispatcher{Engine: permission.NewEngine(settings)}

	result := d.Dispatch(context.Background(), readCall(path))

	if !result.IsError {
		t.Fatalf("expected deny, got success: %s", result.Content)
	}
	if !strings.Contains(result.Content, "denied") {
		t.Errorf("expected denial reason in result content, got: %s", result.Content)
	}
}

func TestDispatcher_AsksDelegateAndHonorsApproval(t *testing.T) {
	path := writeTempFile(t, "needs approval\n")
	settings := &config.Settings{}
	settings.Permissions.Ask = []string{"Read(**)"}
	engine := permission.NewEngine(settings)
	engine.AutoApprove = -1 // force everything through the Ask path

	called := false
	delegate := approveDelegate{onCall: func() { called = true }}
	d := &Dispatcher{Engine: engine, Delegate: delegate}

	result := d.Dispatch(context.Background(), readCall(path))

	if !called {
		t.Fatalf("expected delegate to be consulted")
	}
	if result.IsError {
		t.Fatalf("expected approval to allow execution, got error: %s", result.Content)
	}
}

func TestDispatcher_UnknownToolIsError(t *testing.T) {
	d := &Dispatcher{}
	result := d.Dispatch(context.Background(), message.ToolCall{ID: "x", Name: "NoSuchTool", Input: "{}"})
	if !result.IsError {
		t.Fatalf("expected error result for unknown tool")
	}
}

type approveDelegate struct {
	onCall func()
}

func (a approveDelegate) RequestApproval(_ context.Context, _ string, _ permission.Action, _ risk.Score) (bool, permission.GrantScope, error) {
	if a.onCall != nil {
		a.onCall()
	}
	return true, permission.ScopeOnce, nil
}
