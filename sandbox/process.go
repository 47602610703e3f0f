package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// EventKind identifies what happened to a spawned process.
type EventKind int

const (
	EventStdout EventKind = iota
	EventStderr
	EventExit
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStdout:
		return "stdout"
	case EventStderr:
		return "stderr"
	case EventExit:
		return "exit"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single observation of a spawned process.
type Event struct {
	Kind     EventKind
	Data     []byte // stdout/stderr chunk
	ExitCode int    // exit status; -1 when the process was killed by a signal
	TimedOut bool   // the exit was caused by the execution timeout
	Err      error  // spawn-level failure
}

// Terminal reports whether the event ends the process lifecycle.
func (e Event) Terminal() bool {
	return e.Kind == EventExit || e.Kind == EventError
}

// Command describes a process to spawn.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // appended to the host environment
	Timeout time.Duration
}

// Spawner starts processes and reports their lifecycle as events.
//
// The returned channel delivers output chunks, then exactly one terminal
// event, and is closed afterwards. Implementations may deliver further chunks
// after the terminal event; consumers must keep draining until close.
type Spawner interface {
	Spawn(ctx context.Context, cmd Command) <-chan Event
}

// ProcessSpawner implements Spawner with os/exec.
type ProcessSpawner struct {
	// WaitDelay bounds how long Wait blocks on inherited pipes after the
	// process is killed.
	WaitDelay time.Duration
}

// NewProcessSpawner creates a ProcessSpawner with default settings.
func NewProcessSpawner() *ProcessSpawner {
	return &ProcessSpawner{WaitDelay: time.Second}
}

// Spawn starts the command and streams its events.
func (p *ProcessSpawner) Spawn(ctx context.Context, c Command) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		runCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		}
		defer cancel()

		cmd := exec.CommandContext(runCtx, c.Path, c.Args...) //nolint:gosec // Running user code is intended functionality
		cmd.Dir = c.Dir
		cmd.Env = append(os.Environ(), c.Env...)
		cmd.Stdin = nil
		cmd.Stdout = &chunkWriter{kind: EventStdout, events: events}
		cmd.Stderr = &chunkWriter{kind: EventStderr, events: events}
		cmd.WaitDelay = p.WaitDelay

		if err := cmd.Start(); err != nil {
			events <- Event{Kind: EventError, Err: err}
			return
		}

		err := cmd.Wait()
		timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			events <- Event{Kind: EventExit, ExitCode: 0}
		case errors.As(err, &exitErr):
			events <- Event{Kind: EventExit, ExitCode: exitErr.ExitCode(), TimedOut: timedOut}
		case cmd.ProcessState != nil:
			// the process exited but Wait also reported a context or pipe error
			events <- Event{Kind: EventExit, ExitCode: cmd.ProcessState.ExitCode(), TimedOut: timedOut}
		default:
			events <- Event{Kind: EventError, Err: err}
		}
	}()

	return events
}

// chunkWriter forwards every write as an output event.
type chunkWriter struct {
	kind   EventKind
	events chan<- Event
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	w.events <- Event{Kind: w.kind, Data: chunk}
	return len(p), nil
}
