// Package workspace manages the per invocation directories where submitted
// source is written, built and run.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dirPrefix = "run-"
	maxRetry  = 50
)

// Error records a failed workspace operation
type Error struct {
	Op   string // provision, write, teardown
	Path string
	Err  error
}

func (e *Error) Error() string {
	return "workspace " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

var errInvalidName = errors.New("file name escapes workspace")

// Manager allocates workspaces under a root directory
type Manager struct {
	root   string
	logger *zap.Logger

	onProvision func(*Workspace)
	onTeardown  func(*Workspace)
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used to report teardown failures
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithProvisionHook registers a function called after each provision
func WithProvisionHook(f func(*Workspace)) Option {
	return func(m *Manager) {
		m.onProvision = f
	}
}

// WithTeardownHook registers a function called after each teardown
func WithTeardownHook(f func(*Workspace)) Option {
	return func(m *Manager) {
		m.onTeardown = f
	}
}

// NewManager creates a manager rooted at dir, os.TempDir() if empty
func NewManager(root string, opts ...Option) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	m := &Manager{
		root:   filepath.Clean(root),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Root returns the directory new workspaces are created in
func (m *Manager) Root() string {
	return m.root
}

// Workspace is a directory exclusively owned by one invocation
type Workspace struct {
	dir  string
	once sync.Once
}

// Dir returns the absolute path of the workspace
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the absolute path of a file inside the workspace
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Provision creates a fresh, uniquely named directory
func (m *Manager) Provision() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, &Error{Op: "provision", Path: m.root, Err: err}
	}
	for range maxRetry {
		dir := filepath.Join(m.root, dirPrefix+uuid.NewString())
		err := os.Mkdir(dir, 0o700)
		if err == nil {
			w := &Workspace{dir: dir}
			if m.onProvision != nil {
				m.onProvision(w)
			}
			return w, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, &Error{Op: "provision", Path: dir, Err: err}
		}
	}
	return nil, &Error{Op: "provision", Path: m.root, Err: fmt.Errorf("no unique name after %d tries", maxRetry)}
}

// WriteSource creates the file name with content inside the workspace
func (w *Workspace) WriteSource(name, content string) error {
	if !filepath.IsLocal(name) || strings.ContainsRune(name, os.PathSeparator) {
		return &Error{Op: "write", Path: name, Err: errInvalidName}
	}
	p := w.Path(name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &Error{Op: "write", Path: p, Err: err}
	}
	_, err = f.WriteString(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &Error{Op: "write", Path: p, Err: err}
	}
	return nil
}

// Teardown removes the workspace and everything inside. It runs at most once
// per workspace; failures are logged but not returned.
func (m *Manager) Teardown(w *Workspace) {
	if w == nil {
		return
	}
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			m.logger.Warn("workspace teardown failed", zap.String("dir", w.dir), zap.Error(&Error{Op: "teardown", Path: w.dir, Err: err}))
		}
		if m.onTeardown != nil {
			m.onTeardown(w)
		}
	})
}
