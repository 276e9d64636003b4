package journal

import (
	"path/filepath"
	"testing"
	"time"

	"hist-go/internal/hist"
	"hist-go/internal/journal/migrations"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

var baseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSQLiteJournal_RecordAndRecent(t *testing.T) {
	j := newTestJournal(t)

	events := []hist.Event{
		{Kind: hist.EventAppended, Path: "a.txt", Key: "a.txt.json", Index: 0, At: baseTime},
		{Kind: hist.EventAppended, Path: "b.txt", Key: "b.txt.json", Index: 0, At: baseTime.Add(time.Minute)},
		{Kind: hist.EventPruned, Path: "a.txt", Key: "a.txt.json", Index: -1, Count: 3, At: baseTime.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record(%v) error = %v", e.Kind, err)
		}
	}

	got, err := j.Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(got))
	}
	if got[0].Kind != hist.EventPruned || got[0].Count != 3 || got[0].Index != -1 {
		t.Errorf("newest entry = %+v, want prune of 3", got[0])
	}
	if !got[0].OccurredAt.Equal(events[2].At) {
		t.Errorf("OccurredAt = %v, want %v", got[0].OccurredAt, events[2].At)
	}
	if got[2].Path != "a.txt" || got[2].Key != "a.txt.json" {
		t.Errorf("oldest entry = %+v", got[2])
	}

	limited, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Recent(2) returned %d entries", len(limited))
	}
}

func TestSQLiteJournal_ForPath(t *testing.T) {
	j := newTestJournal(t)
	for i, p := range []string{"a.txt", "b.txt", "a.txt", "a.txt"} {
		if err := j.Record(hist.Event{Kind: hist.EventAppended, Path: p, Key: p + ".json", Index: i, At: baseTime}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		path  string
		limit int
		want  int
	}{
		{"all for a", "a.txt", 0, 3},
		{"limited", "a.txt", 1, 1},
		{"other", "b.txt", 10, 1},
		{"unknown", "c.txt", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.ForPath(tt.path, tt.limit)
			if err != nil {
				t.Fatalf("ForPath() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ForPath(%q, %d) = %d entries, want %d", tt.path, tt.limit, len(got), tt.want)
			}
			for _, e := range got {
				if e.Path != tt.path {
					t.Errorf("entry path = %q, want %q", e.Path, tt.path)
				}
			}
		})
	}

	got, _ := j.ForPath("a.txt", 0)
	if got[0].Index != 3 {
		t.Errorf("newest a.txt entry index = %d, want 3", got[0].Index)
	}
}

func TestSQLiteJournal_ZeroTime(t *testing.T) {
	j := newTestJournal(t)
	if err := j.Record(hist.Event{Kind: hist.EventDeleted, Path: "x", Key: "x.json"}); err != nil {
		t.Fatal(err)
	}
	got, err := j.Recent(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent() = %v, %v", got, err)
	}
	if got[0].OccurredAt.IsZero() {
		t.Error("OccurredAt should default to now")
	}
}

func TestSQLiteJournal_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	j, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	if err := j.Record(hist.Event{Kind: hist.EventAppended, Path: "a", Key: "a.json", At: baseTime}); err != nil {
		t.Fatal(err)
	}
	if err := migrations.Check(j.db); err != nil {
		t.Errorf("schema check = %v", err)
	}
	j.Close()

	j, err = NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer j.Close()
	got, err := j.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("after reopen got %d entries, want 1", len(got))
	}
}
