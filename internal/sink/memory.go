package sink

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"hist-go/internal/hist"
)

// MemorySink is an in-memory implementation of the Sink interface, useful
// for testing. This implementation is safe for concurrent use.
type MemorySink struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemorySink creates a new in-memory sink with the given name.
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{
		name:    name,
		objects: make(map[string][]byte),
	}
}

func (m *MemorySink) Name() string { return m.name }

func (m *MemorySink) Put(name string, r io.Reader, size int64) error {
	clean, err := cleanObjectName(name)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[clean] = data
	return nil
}

func (m *MemorySink) Get(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("%w: object %s", hist.ErrNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Objects returns the stored object names in sorted order.
func (m *MemorySink) Objects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.objects))
	for n := range m.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *MemorySink) ValidateSetup() error { return nil }

var _ hist.Sink = (*MemorySink)(nil)
