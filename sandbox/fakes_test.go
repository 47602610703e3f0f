package sandbox

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"
)

// fakeSpawner replays scripted events keyed by the command path
type fakeSpawner struct {
	mu      sync.Mutex
	calls   []Command
	scripts map[string][]Event
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{scripts: map[string][]Event{}}
}

func (f *fakeSpawner) script(path string, events ...Event) *fakeSpawner {
	f.scripts[path] = events
	return f
}

func (f *fakeSpawner) Spawn(_ context.Context, cmd Command) <-chan Event {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	events, ok := f.scripts[cmd.Path]
	f.mu.Unlock()

	if !ok {
		events = []Event{{Kind: EventError, Err: errors.New("exec: \"" + cmd.Path + "\": executable file not found in $PATH")}}
	}

	ch := make(chan Event)
	go func() {
		defer close(ch)
		for _, ev := range events {
			ch <- ev
		}
	}()
	return ch
}

func (f *fakeSpawner) spawned() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

func stdout(s string) Event { return Event{Kind: EventStdout, Data: []byte(s)} }
func stderr(s string) Event { return Event{Kind: EventStderr, Data: []byte(s)} }
func exit(code int) Event   { return Event{Kind: EventExit, ExitCode: code} }

// fakeFileSystem records workspace operations and injects failures
type fakeFileSystem struct {
	mu        sync.Mutex
	mkdirErr  error
	writeErr  error
	removeErr error
	created   []string
	written   map[string]string
	removed   []string
}

func newFakeFileSystem() *fakeFileSystem {
	return &fakeFileSystem{written: map[string]string{}}
}

func (f *fakeFileSystem) Mkdir(path string, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	f.created = append(f.created, path)
	return nil
}

func (*fakeFileSystem) MkdirAll(string, os.FileMode) error {
	return nil
}

func (f *fakeFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[filename] = string(data)
	return nil
}

func (f *fakeFileSystem) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return f.removeErr
}

func (f *fakeFileSystem) removedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.removed)
}

// steppingClock advances by step on every reading
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func hasPrefixArg(args []string, prefix string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}
