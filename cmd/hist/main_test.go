package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"hist-go/internal/hist"
	"hist-go/internal/testutil"
)

func newExportService(t *testing.T) *hist.HistService {
	t.Helper()
	st := testutil.NewTestStore(t)
	if _, err := st.Append("a.txt", "saved", "txt", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := st.TagBranch("a.txt", "dev"); err != nil {
		t.Fatal(err)
	}
	return hist.NewHistService(st, testutil.NewMemoryWorkspace(), nil, nil, hist.NewNopLogger(), 0)
}

func TestWriteOutput_FailedExportKeepsExistingFile(t *testing.T) {
	svc := newExportService(t)

	tests := []struct {
		name    string
		index   int
		encrypt bool
		wantErr error
	}{
		{name: "index out of range", index: 99, wantErr: hist.ErrNotFound},
		{name: "branch marker", index: 1, wantErr: hist.ErrNotSnapshot},
		{name: "encrypt without keys", index: 0, encrypt: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "notes.txt")
			if err := os.WriteFile(out, []byte("keep me"), 0600); err != nil {
				t.Fatal(err)
			}

			err := writeOutput(out, func(w io.Writer) error {
				return svc.ExportTo("a.txt", tt.index, w, tt.encrypt)
			})
			if err == nil {
				t.Fatal("writeOutput() error = nil, want failure")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("writeOutput() error = %v, want %v", err, tt.wantErr)
			}

			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("existing file gone: %v", err)
			}
			if string(got) != "keep me" {
				t.Errorf("existing file = %q, want %q", got, "keep me")
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 1 {
				t.Errorf("dir has %d entries, want only notes.txt", len(entries))
			}
		})
	}
}

func TestWriteOutput_ReplacesFileKeepingMode(t *testing.T) {
	svc := newExportService(t)
	out := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(out, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := writeOutput(out, func(w io.Writer) error {
		return svc.ExportTo("a.txt", 0, w, false)
	}); err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "saved" {
		t.Errorf("content = %q, want %q", got, "saved")
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteOutput_CreatesNewFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fresh.txt")
	if err := writeOutput(out, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	}); err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil || string(got) != "hello" {
		t.Errorf("ReadFile() = %q, %v", got, err)
	}
}
