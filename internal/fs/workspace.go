// Package fs implements hist.Workspace on the real filesystem.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"hist-go/internal/hist"
)

// OSWorkspace resolves and accesses live files under a workspace root.
type OSWorkspace struct {
	root   string
	ignore *IgnoreMatcher
}

// NewOSWorkspace creates a workspace rooted at root. Ignore patterns are the
// union of patterns and the root's .histignore file.
func NewOSWorkspace(root string, patterns []string) (*OSWorkspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", abs)
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(abs, IgnoreFile))
	if err != nil {
		return nil, err
	}
	all := append(append([]string{IgnoreFile}, patterns...), filePatterns...)

	return &OSWorkspace{root: abs, ignore: NewIgnoreMatcher(all)}, nil
}

func (w *OSWorkspace) Root() string { return w.root }

// Rel converts rawPath to a slash-separated path relative to the root.
func (w *OSWorkspace) Rel(rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", hist.ErrInvalidPath, rawPath, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the workspace %s", hist.ErrInvalidPath, rawPath, w.root)
	}
	return filepath.ToSlash(rel), nil
}

func (w *OSWorkspace) abs(relPath string) string {
	return filepath.Join(w.root, filepath.FromSlash(relPath))
}

// ReadFile returns the content of a regular file. Special files are refused.
func (w *OSWorkspace) ReadFile(relPath string) ([]byte, error) {
	p := w.abs(relPath)
	info, err := os.Lstat(p)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", p)
	}
	return os.ReadFile(p)
}

// WriteFile replaces relPath atomically, keeping the existing file mode.
func (w *OSWorkspace) WriteFile(relPath string, data []byte) error {
	p := w.abs(relPath)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	mode := fs.FileMode(0644)
	if info, err := os.Stat(p); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".hist-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", relPath, err)
	}
	return nil
}

// FindFiles lists non-ignored regular files under relDir. Ignored directories
// are not descended into.
func (w *OSWorkspace) FindFiles(relDir string, recursive bool) ([]string, error) {
	start := w.root
	if relDir != "" && relDir != "." {
		start = w.abs(relDir)
	}
	info, err := os.Stat(start)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", relDir)
	}

	var files []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == start {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive || w.ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.ignore.Match(rel, false) {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

// Compile-time check that OSWorkspace implements hist.Workspace interface
var _ hist.Workspace = (*OSWorkspace)(nil)
