package sandbox

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// processOutcome is the state of one process at its first terminal event.
type processOutcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	SpawnErr error
}

func (o processOutcome) succeeded() bool {
	return o.SpawnErr == nil && o.ExitCode == 0
}

var errNoExitStatus = errors.New("process ended without an exit status")

// await collects output chunks until the first terminal event. Anything the
// spawner delivers after that is drained in the background and discarded.
func await(events <-chan Event) processOutcome {
	var stdout, stderr strings.Builder

	for ev := range events {
		switch ev.Kind {
		case EventStdout:
			stdout.Write(ev.Data)
		case EventStderr:
			stderr.Write(ev.Data)
		case EventExit, EventError:
			go drain(events)
			return processOutcome{
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				ExitCode: ev.ExitCode,
				TimedOut: ev.TimedOut,
				SpawnErr: ev.Err,
			}
		}
	}

	return processOutcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		SpawnErr: errNoExitStatus,
	}
}

func drain(events <-chan Event) {
	for range events { //nolint:revive // discard late events
	}
}

// settler produces the single result of a request. Only the first call to
// succeed or fail takes effect; cleanups registered with onSettle run once,
// before the result becomes visible.
type settler struct {
	once     sync.Once
	start    time.Time
	now      func() time.Time
	cleanups []func()
	result   ExecuteResult
}

func newSettler(now func() time.Time) *settler {
	return &settler{start: now(), now: now}
}

func (s *settler) onSettle(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

// succeed settles with the trimmed program output.
func (s *settler) succeed(stdout string) bool {
	output := strings.TrimSpace(stdout)
	if output == "" {
		output = MsgNoOutput
	}
	return s.settle(ExecuteResult{Output: output})
}

// fail settles with an error message and empty output.
func (s *settler) fail(message string) bool {
	return s.settle(ExecuteResult{Output: "", Error: message})
}

func (s *settler) settle(r ExecuteResult) bool {
	first := false
	s.once.Do(func() {
		first = true
		r.ExecutionTimeMs = s.now().Sub(s.start).Milliseconds()
		for _, cleanup := range s.cleanups {
			cleanup()
		}
		s.result = r
	})
	return first
}

// outcome returns the settled result, settling with a generic failure if no
// path did.
func (s *settler) outcome() ExecuteResult {
	s.fail(MsgExecutionFailed)
	return s.result
}

// trimmedOr returns the trimmed text, or fallback when nothing is left.
func trimmedOr(text, fallback string) string {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return trimmed
	}
	return fallback
}
