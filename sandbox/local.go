package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config holds the executor settings
type Config struct {
	TimeoutSec int
	TempDir    string
	Python     PythonToolchain
	Java       JavaToolchain
}

// Timeout returns the per-process wall-clock limit.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// PythonToolchain names the interpreter executable
type PythonToolchain struct {
	Command string
	Env     []string
}

// JavaToolchain names the compiler and runtime executables
type JavaToolchain struct {
	Compiler string
	Runtime  string
	Env      []string
}

// LocalExecutor implements Executor by spawning host processes
type LocalExecutor struct {
	logger  *zap.Logger
	config  *Config
	spawner Spawner
	fs      FileSystem
	now     func() time.Time
}

// LocalExecutorOption defines a functional option for LocalExecutor
type LocalExecutorOption func(*LocalExecutor)

// WithLocalSpawner sets the Spawner for LocalExecutor
func WithLocalSpawner(spawner Spawner) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.spawner = spawner
	}
}

// WithLocalFileSystem sets the FileSystem for LocalExecutor
func WithLocalFileSystem(fs FileSystem) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.fs = fs
	}
}

// WithLocalClock sets the clock used to measure execution time
func WithLocalClock(now func() time.Time) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.now = now
	}
}

// NewLocalExecutor creates a new LocalExecutor with default implementations and optional interfaces
func NewLocalExecutor(logger *zap.Logger, config *Config, opts ...LocalExecutorOption) *LocalExecutor {
	executor := &LocalExecutor{
		logger:  logger,
		config:  config,
		spawner: NewProcessSpawner(),
		fs:      &RealFileSystem{},
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the code with the host's toolchain and returns exactly one result.
// The returned error is always nil; execution failures are reported in the result.
//
//nolint:gocritic // request struct is passed by value like the Executor interface
func (l *LocalExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	s := newSettler(l.now)
	log := l.logger.With(zap.String("language", req.Language), zap.Int("code_len", len(req.Code)))

	switch req.Language {
	case LanguagePython:
		l.runPython(ctx, log, s, req.Code)
	case LanguageJava:
		l.runJava(ctx, log, s, req.Code)
	default:
		s.fail(fmt.Sprintf("Language '%s' not supported", req.Language))
	}

	result := s.outcome()
	log.Info("code execution completed",
		zap.Bool("failed", result.Failed()),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs),
		zap.Int("output_len", len(result.Output)),
		zap.Int("error_len", len(result.Error)))

	return result, nil
}

func (l *LocalExecutor) runPython(ctx context.Context, log *zap.Logger, s *settler, code string) {
	out := l.run(ctx, log, "interpret", Command{
		Path:    l.config.Python.Command,
		Args:    []string{"-c", code},
		Env:     l.config.Python.Env,
		Timeout: l.config.Timeout(),
	})

	switch {
	case out.SpawnErr != nil:
		s.fail("Execution error: " + out.SpawnErr.Error())
	case out.succeeded():
		s.succeed(out.Stdout)
	default:
		s.fail(trimmedOr(out.Stderr, MsgExecutionFailed))
	}
}

func (l *LocalExecutor) runJava(ctx context.Context, log *zap.Logger, s *settler, code string) {
	ws, err := NewWorkspace(l.fs, l.config.TempDir)
	if err != nil {
		s.fail("File system error: " + err.Error())
		return
	}
	log = log.With(zap.String("workspace", ws.ID()))
	s.onSettle(func() {
		if removeErr := ws.Remove(); removeErr != nil {
			log.Warn("failed to remove workspace", zap.String("dir", ws.Dir()), zap.Error(removeErr))
		}
	})

	if writeErr := ws.WriteFile(JavaSourceFile, code); writeErr != nil {
		s.fail("File system error: " + writeErr.Error())
		return
	}

	compiled := l.run(ctx, log, "compile", Command{
		Path:    l.config.Java.Compiler,
		Args:    []string{ws.Path(JavaSourceFile)},
		Dir:     ws.Dir(),
		Env:     l.config.Java.Env,
		Timeout: l.config.Timeout(),
	})

	switch {
	case compiled.SpawnErr != nil:
		s.fail("Java compilation error: " + compiled.SpawnErr.Error())
		return
	case !compiled.succeeded():
		s.fail(MsgCompilationErrorPrefix + trimmedOr(compiled.Stderr, MsgJavaCompilationFailed))
		return
	}

	ran := l.run(ctx, log, "run", Command{
		Path:    l.config.Java.Runtime,
		Args:    []string{"-cp", ws.Dir(), JavaMainClass},
		Dir:     ws.Dir(),
		Env:     l.config.Java.Env,
		Timeout: l.config.Timeout(),
	})

	switch {
	case ran.SpawnErr != nil:
		s.fail("Java execution error: " + ran.SpawnErr.Error())
	case ran.succeeded():
		s.succeed(ran.Stdout)
	default:
		s.fail(trimmedOr(ran.Stderr, MsgJavaExecutionFailed))
	}
}

// run spawns one stage and waits for its first terminal event.
func (l *LocalExecutor) run(ctx context.Context, log *zap.Logger, stage string, cmd Command) processOutcome {
	log.Debug("spawning process", zap.String("stage", stage), zap.String("command", cmd.Path))

	out := await(l.spawner.Spawn(ctx, cmd))

	switch {
	case out.SpawnErr != nil:
		log.Warn("process could not be started", zap.String("stage", stage), zap.Error(out.SpawnErr))
	case out.TimedOut:
		// reported to the caller as an ordinary non-zero exit
		log.Warn("process killed after timeout",
			zap.String("stage", stage),
			zap.Duration("timeout", cmd.Timeout),
			zap.Bool("timed_out", true))
	default:
		log.Debug("process exited", zap.String("stage", stage), zap.Int("exit_code", out.ExitCode))
	}

	return out
}
