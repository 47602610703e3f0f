package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Workspace is a per-request scratch directory owned by a single execution.
type Workspace struct {
	fs   FileSystem
	id   string
	dir  string
	once sync.Once
	err  error
}

// NewWorkspace creates a uniquely named directory under root. An empty root
// means the OS temp directory.
func NewWorkspace(fs FileSystem, root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := fs.MkdirAll(root, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create temp root %s: %w", root, err)
	}

	id := strings.ToLower(ulid.Make().String())
	dir := filepath.Join(root, WorkspacePrefix+id)
	if err := fs.Mkdir(dir, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{fs: fs, id: id, dir: dir}, nil
}

// ID returns the unique workspace identifier.
func (w *Workspace) ID() string { return w.id }

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteFile writes a file into the workspace.
func (w *Workspace) WriteFile(name, content string) error {
	if err := w.fs.WriteFile(w.Path(name), []byte(content), FilePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Remove deletes the workspace recursively. Only the first call touches the
// file system; later calls return the first call's error.
func (w *Workspace) Remove() error {
	w.once.Do(func() {
		w.err = w.fs.RemoveAll(w.dir)
	})
	return w.err
}
