package steering

import (
	"context"
	"testing"
	"time"
)

func TestHandle_RedirectIsObservedByNext(t *testing.T) {
	ch := New()
	ch.Handle().Redirect("focus on the failing test")

	cmd, ok := ch.Next()
	if !ok {
		t.Fatalf("expected a queued command")
	}
	if cmd.Kind != CmdRedirect || cmd.Text != "focus on the failing test" {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestHandle_PauseResumeTracksState(t *testing.T) {
	ch := New()
	h := ch.Handle()

	h.Pause()
	if !ch.IsPaused() {
		t.Errorf("expected paused after Pause")
	}
	h.Resume()
	if ch.IsPaused() {
		t.Errorf("expected not paused after Resume")
	}
}

func TestHandle_StopIsTerminalAndDropsLaterCommands(t *testing.T) {
	ch := New()
	h := ch.Handle()

	h.Stop()
	if !ch.IsStopped() {
		t.Fatalf("expected stopped after Stop")
	}

	h.Redirect("too late")
	h.InjectContext("also too late")
	h.Pause()

	// Drain everything queued; only the Stop command (or nothing, if the
	// Stop send itself raced the default-case drop) should appear — never
	// a Redirect/InjectContext/Pause queued after Stop latched.
	for {
		cmd, ok := ch.Next()
		if !ok {
			break
		}
		if cmd.Kind != CmdStop {
			t.Errorf("expected only a Stop command after latch, got %v", cmd.Kind)
		}
	}
}

func TestQueryStatus_RoundTrips(t *testing.T) {
	ch := New()
	h := ch.Handle()

	done := make(chan Status, 1)
	go func() {
		st, ok := h.QueryStatus(context.Background())
		if !ok {
			t.Error("expected QueryStatus to succeed")
		}
		done <- st
	}()

	cmd, ok := ch.Wait(context.Background())
	if !ok || cmd.Kind != CmdQueryStatus {
		t.Fatalf("expected a query_status command, got %+v ok=%v", cmd, ok)
	}
	cmd.Reply <- Status{Paused: true, Turn: 4}

	select {
	case st := <-done:
		if !st.Paused || st.Turn != 4 {
			t.Errorf("unexpected status: %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for QueryStatus reply")
	}
}

func TestQueryStatus_ContextCancelledBeforeReply(t *testing.T) {
	ch := New()
	h := ch.Handle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The command is still enqueued (capacity available), but the caller
	// gives up immediately since ctx is already done — exercised via the
	// reply-wait path by never answering it.
	ch.Handle().send(SteerCommand{Kind: CmdPause})

	_, ok := h.QueryStatus(ctx)
	if ok {
		t.Errorf("expected QueryStatus to fail on an already-cancelled context")
	}
}

func TestDrain_AppliesInOrderAndAnswersQueries(t *testing.T) {
	ch := New()
	h := ch.Handle()

	h.Redirect("a")
	h.InjectContext("b")

	var applied []CommandKind
	ch.Drain(func() Status { return Status{Turn: 1} }, func(cmd SteerCommand) {
		applied = append(applied, cmd.Kind)
	})

	if len(applied) != 2 || applied[0] != CmdRedirect || applied[1] != CmdInjectContext {
		t.Errorf("unexpected apply order: %v", applied)
	}
}

func TestNewWithCapacity_NonPositiveFallsBackToDefault(t *testing.T) {
	ch := NewWithCapacity(0)
	if cap(ch.commands) != defaultCapacity {
		t.Errorf("expected default capacity, got %d", cap(ch.commands))
	}
}
