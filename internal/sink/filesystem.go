package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hist-go/internal/hist"
)

// FileSystemSink stores exported snapshots as plain files under a root
// directory. Object names map to relative paths below the root.
type FileSystemSink struct {
	name string
	root string
}

// NewFileSystemSink creates a new filesystem sink rooted at the given path.
func NewFileSystemSink(name, root string) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sink root: %w", err)
	}
	return &FileSystemSink{name: name, root: root}, nil
}

func (s *FileSystemSink) Name() string { return s.name }

// Put stores size bytes from r under name, replacing any existing object.
func (s *FileSystemSink) Put(name string, r io.Reader, size int64) error {
	clean, err := cleanObjectName(name)
	if err != nil {
		return err
	}
	destPath := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	return s.writeFile(destPath, r, size)
}

// Get writes the object stored under name to w.
func (s *FileSystemSink) Get(name string, w io.Writer) error {
	clean, err := cleanObjectName(name)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: object %s", hist.ErrNotFound, name)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the sink root is an accessible directory.
func (s *FileSystemSink) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("sink root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sink root is not a directory: %s", s.root)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (s *FileSystemSink) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemSink implements hist.Sink interface
var _ hist.Sink = (*FileSystemSink)(nil)
