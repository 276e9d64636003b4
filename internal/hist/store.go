package hist

import "time"

// VersionStore owns the history of every tracked path. All methods take a
// workspace-relative path, which is turned into a storage key by PathCodec.
type VersionStore interface {
	// Append adds a snapshot to the end of the path's history, creating the
	// history if needed. The write is durable when Append returns.
	Append(path, content, format, branch string) (*Version, error)

	// List returns the history in append order, or an empty slice if the path
	// has none.
	List(path string) ([]Version, error)

	// Get returns the version at index. Out-of-range indexes are ErrNotFound.
	Get(path string, index int) (*Version, error)

	// DeleteAt removes the version at index; later versions shift down by one.
	DeleteAt(path string, index int) error

	// ToggleFavorite flips the favorite flag at index and returns the new value.
	ToggleFavorite(path string, index int) (bool, error)

	// Prune keeps the newest keep versions and returns how many were removed.
	Prune(path string, keep int) (int, error)

	// Search returns every version whose content contains query. Corrupt
	// history files are skipped.
	Search(query string) ([]SearchResult, error)

	// TagBranch appends a branch marker. Markers carry no content and are
	// never restored as snapshots.
	TagBranch(path, branch string) (*Version, error)

	// DeleteHistory removes the path's whole history.
	DeleteHistory(path string) error

	// Files lists every stored history.
	Files() ([]TrackedFile, error)

	// Subscribe registers fn to be called after every successful mutation.
	// The returned func removes the subscription.
	Subscribe(fn func(Event)) (cancel func())
}

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventAppended        EventKind = "appended"
	EventBranchTagged    EventKind = "branch_tagged"
	EventDeleted         EventKind = "deleted"
	EventFavoriteToggled EventKind = "favorite_toggled"
	EventPruned          EventKind = "pruned"
	EventHistoryDeleted  EventKind = "history_deleted"
)

// Event describes a completed store mutation.
type Event struct {
	Kind  EventKind
	Path  string
	Key   string
	Index int // affected index, or -1 when the mutation has none
	Count int // versions removed by a prune or history delete
	At    time.Time
}
