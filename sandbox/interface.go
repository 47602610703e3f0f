package sandbox

import (
	"context"
	"errors"
	"os"
)

// ExecuteRequest represents the parameters for code execution
type ExecuteRequest struct {
	Language string
	Code     string
}

// ExecuteResult represents the result of code execution.
// Error is empty when the program ran to a zero exit status.
type ExecuteResult struct {
	Output          string `json:"output"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"executionTime"`
}

// Failed reports whether the result carries an error.
func (r ExecuteResult) Failed() bool {
	return r.Error != ""
}

// Executor defines the interface for sandbox execution
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// ErrBusy is returned when the executor refuses a request because too many
// executions are already in flight.
var ErrBusy = errors.New("too many executions in progress, please try again later")

// LanguageName constants
const (
	LanguagePython = "python"
	LanguageJava   = "java"
)

// SupportedLanguages lists the languages the executor accepts.
var SupportedLanguages = []string{LanguagePython, LanguageJava}

// IsSupported reports whether language can be executed.
func IsSupported(language string) bool {
	for _, l := range SupportedLanguages {
		if l == language {
			return true
		}
	}
	return false
}

// Java workspace layout
const (
	JavaSourceFile  = "Main.java"
	JavaMainClass   = "Main"
	WorkspacePrefix = "java-run-"
)

// File permission constants
const (
	DirPermission  = 0o700
	FilePermission = 0o600
)

// Messages reported to the caller
const (
	MsgNoOutput               = "Code executed successfully (no output)"
	MsgExecutionFailed        = "Code execution failed"
	MsgJavaExecutionFailed    = "Java execution failed"
	MsgJavaCompilationFailed  = "Java compilation failed"
	MsgCompilationErrorPrefix = "Compilation error: "
)

// FileSystem defines an interface for file system operations
type FileSystem interface {
	Mkdir(path string, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
