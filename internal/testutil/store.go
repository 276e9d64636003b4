package testutil

import (
	"testing"

	"hist-go/internal/hist"
	"hist-go/internal/store"
)

// NewTestStore creates a FileStore in a temp directory with a fixed clock and
// sequential IDs.
func NewTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir(), FixedClock(), NewStubIDGenerator(), hist.NewNopLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}
