package hist

import "time"

// JournalEntry is one recorded store mutation.
type JournalEntry struct {
	ID         int64
	OccurredAt time.Time
	Kind       EventKind
	Path       string
	Key        string
	Index      int
	Count      int
}

// Journal keeps an audit log of store mutations. It is fed from
// VersionStore.Subscribe.
type Journal interface {
	// Record appends an entry for e.
	Record(e Event) error

	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]*JournalEntry, error)

	// ForPath returns up to limit entries for one path, newest first.
	ForPath(path string, limit int) ([]*JournalEntry, error)

	// Close releases the underlying database.
	Close() error
}
