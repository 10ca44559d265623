// Package steering implements the Steering Channel: an external-control
// seam that lets a caller pause, resume, stop, redirect, or inject context
// into a running agent loop between its safe points (turn boundaries,
// between tool calls). It generalizes the ashkavakil-attractor pack
// example's Session.Steer/SteeringQueue — a plain slice guarded by a
// mutex — into a buffered channel with an explicit Stop-is-terminal latch
// and a request/reply QueryStatus.
package steering

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// CommandKind identifies what a SteerCommand asks the loop to do.
type CommandKind int

const (
	CmdPause CommandKind = iota
	CmdResume
	CmdStop
	CmdRedirect
	CmdInjectContext
	CmdQueryStatus
)

func (k CommandKind) String() string {
	switch k {
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdStop:
		return "stop"
	case CmdRedirect:
		return "redirect"
	case CmdInjectContext:
		return "inject_context"
	case CmdQueryStatus:
		return "query_status"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the loop's run state, returned via QueryStatus.
type Status struct {
	Paused bool
	Turn   int
}

// SteerCommand is one instruction delivered to the loop's consumer side.
// ID correlates the command with whatever log line or downstream event
// references it (e.g. the cancellation that a Stop triggers). Text carries
// the redirect/injected content; Reply is populated only for
// CmdQueryStatus, a one-shot channel the loop writes its current Status to.
type SteerCommand struct {
	ID    string
	Kind  CommandKind
	Text  string
	Reply chan Status
}

// defaultCapacity bounds the command channel so a runaway producer
// (e.g. a misbehaving TUI key-repeat) cannot grow memory unbounded; a
// full channel blocks the caller's Handle method, exerting backpressure.
const defaultCapacity = 16

// Channel is the steering command queue between an external controller and
// a running loop. The zero value is not usable; construct with New.
type Channel struct {
	commands chan SteerCommand
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	paused bool
}

// New creates a Channel with the default buffer capacity.
func New() *Channel {
	return NewWithCapacity(defaultCapacity)
}

// NewWithCapacity creates a Channel buffered to capacity commands.
func NewWithCapacity(capacity int) *Channel {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Channel{commands: make(chan SteerCommand, capacity), stopCh: make(chan struct{})}
}

// Handle is the producer-facing API; it is safe to use concurrently with
// Next and with other Handle calls.
type Handle struct {
	ch *Channel
}

// Handle returns the producer-side handle for this channel.
func (c *Channel) Handle() Handle { return Handle{ch: c} }

// send enqueues cmd, silently discarding it once the channel has seen a
// Stop — Stop is a terminal latch per spec's "non-retractable" semantics,
// so nothing steers a loop that is already unwinding.
func (h Handle) send(cmd SteerCommand) {
	if h.ch.stopped.Load() {
		return
	}
	h.ch.commands <- cmd
}

// Pause requests the loop suspend at its next safe point.
func (h Handle) Pause() {
	h.ch.mu.Lock()
	h.ch.paused = true
	h.ch.mu.Unlock()
	h.send(SteerCommand{ID: uuid.New().String(), Kind: CmdPause})
}

// Resume requests the loop continue after a Pause.
func (h Handle) Resume() {
	h.ch.mu.Lock()
	h.ch.paused = false
	h.ch.mu.Unlock()
	h.send(SteerCommand{ID: uuid.New().String(), Kind: CmdResume})
}

// Stop requests the loop terminate at its next safe point. After Stop,
// further Pause/Resume/Redirect/InjectContext sends are silently dropped.
// It also closes the channel's Stopped signal immediately, so a caller
// deriving a cancellation context from it does not have to wait for the
// loop to reach a safe point and drain the CmdStop command itself.
func (h Handle) Stop() {
	h.ch.stopped.Store(true)
	h.ch.stopOnce.Do(func() { close(h.ch.stopCh) })
	select {
	case h.ch.commands <- SteerCommand{ID: uuid.New().String(), Kind: CmdStop}:
	default:
		// Buffer momentarily full: the consumer will still observe
		// stopped via IsStopped/Stopped even if this particular command
		// is lost.
	}
}

// Redirect injects new user-facing instructions to steer the next turn
// without waiting for the current tool round to finish.
func (h Handle) Redirect(text string) {
	h.send(SteerCommand{ID: uuid.New().String(), Kind: CmdRedirect, Text: text})
}

// InjectContext adds out-of-band context (e.g. a hook's additional
// context, or operator-supplied information) as a system message ahead of
// the next turn.
func (h Handle) InjectContext(text string) {
	h.send(SteerCommand{ID: uuid.New().String(), Kind: CmdInjectContext, Text: text})
}

// QueryStatus asks the loop to report its current status, blocking until
// the loop answers or ctx is done. Returns ok=false if ctx expired first
// or the channel has already been stopped and drained.
func (h Handle) QueryStatus(ctx context.Context) (Status, bool) {
	reply := make(chan Status, 1)
	cmd := SteerCommand{ID: uuid.New().String(), Kind: CmdQueryStatus, Reply: reply}

	if h.ch.stopped.Load() {
		return Status{}, false
	}
	select {
	case h.ch.commands <- cmd:
	case <-ctx.Done():
		return Status{}, false
	}

	select {
	case st := <-reply:
		return st, true
	case <-ctx.Done():
		return Status{}, false
	}
}

// IsStopped reports whether Stop has been requested.
func (c *Channel) IsStopped() bool { return c.stopped.Load() }

// Stopped returns a channel that closes the moment Stop is called, for a
// goroutine to select on without consuming from the shared commands
// channel (Next/Wait/Drain remain the single consumer of that one).
func (c *Channel) Stopped() <-chan struct{} { return c.stopCh }

// IsPaused reports the last Pause/Resume state recorded.
func (c *Channel) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Next returns the next pending command without blocking, for the loop to
// poll at its safe points. ok is false when no command is queued.
func (c *Channel) Next() (SteerCommand, bool) {
	select {
	case cmd := <-c.commands:
		return cmd, true
	default:
		return SteerCommand{}, false
	}
}

// Wait blocks until a command arrives or ctx is done, for a loop that is
// paused and has nothing else to do until steered.
func (c *Channel) Wait(ctx context.Context) (SteerCommand, bool) {
	select {
	case cmd := <-c.commands:
		return cmd, true
	case <-ctx.Done():
		return SteerCommand{}, false
	}
}

// Drain applies all pending commands in order via apply, used by the loop
// at a safe point to fold in everything queued since the last check.
// QueryStatus commands are answered with currentStatus (refreshed per
// command in case a prior command in the same batch changed it).
func (c *Channel) Drain(currentStatus func() Status, apply func(SteerCommand)) {
	for {
		cmd, ok := c.Next()
		if !ok {
			return
		}
		if cmd.Kind == CmdQueryStatus {
			if cmd.Reply != nil {
				cmd.Reply <- currentStatus()
			}
			continue
		}
		apply(cmd)
	}
}
