package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FilePermission is the mode for generated script files.
const FilePermission = 0600

// DirPermission is the mode for created directories.
const DirPermission = 0755

// Workspace is an ephemeral, uniquely named directory owning all files for
// one execution session. It is torn down on Dispose, on every exit path.
type Workspace struct {
	dir string

	mu       sync.Mutex
	disposed bool
}

// NewWorkspace allocates a fresh workspace directory under root. An empty
// root falls back to the system temp directory. The directory name carries
// an opaque random suffix so concurrent executions never collide.
func NewWorkspace(root string) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, DirPermission); err != nil {
			return nil, fmt.Errorf("failed to create workspace root: %w", err)
		}
	}

	dir, err := os.MkdirTemp(root, "scriptbox-ws-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// WriteScript writes one file inside the workspace and returns its full path.
// The name must be a bare filename — path separators are rejected.
func (w *Workspace) WriteScript(name string, content []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid script file name: %q", name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return "", fmt.Errorf("workspace already disposed")
	}

	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, content, FilePermission); err != nil {
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	return path, nil
}

// Dispose removes the workspace directory and all contents. Safe to call
// multiple times; already-missing files are not an error.
func (w *Workspace) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return nil
	}
	w.disposed = true

	if err := os.RemoveAll(w.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}
