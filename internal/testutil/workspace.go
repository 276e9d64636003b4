package testutil

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"hist-go/internal/hist"
)

// MemoryWorkspace is an in-memory hist.Workspace for testing. Paths are
// slash-separated and relative to a fake root.
type MemoryWorkspace struct {
	mu    sync.Mutex
	root  string
	files map[string][]byte
}

// NewMemoryWorkspace creates an empty workspace rooted at /ws.
func NewMemoryWorkspace() *MemoryWorkspace {
	return &MemoryWorkspace{root: "/ws", files: make(map[string][]byte)}
}

// AddFile creates or replaces a file.
func (w *MemoryWorkspace) AddFile(relPath, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[relPath] = []byte(content)
}

// Content returns the current content of relPath and whether it exists.
func (w *MemoryWorkspace) Content(relPath string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[relPath]
	return string(data), ok
}

func (w *MemoryWorkspace) Root() string { return w.root }

func (w *MemoryWorkspace) Rel(rawPath string) (string, error) {
	if !strings.HasPrefix(rawPath, "/") {
		return path.Clean(rawPath), nil
	}
	rel, ok := strings.CutPrefix(rawPath, w.root+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s is outside the workspace", hist.ErrInvalidPath, rawPath)
	}
	return rel, nil
}

func (w *MemoryWorkspace) ReadFile(relPath string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[relPath]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", relPath, fs.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (w *MemoryWorkspace) WriteFile(relPath string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[relPath] = append([]byte(nil), data...)
	return nil
}

func (w *MemoryWorkspace) FindFiles(relDir string, recursive bool) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := ""
	if relDir != "" && relDir != "." {
		prefix = strings.TrimSuffix(relDir, "/") + "/"
	}

	var out []string
	for p := range w.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		if !recursive && strings.Contains(rest, "/") {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

var _ hist.Workspace = (*MemoryWorkspace)(nil)
