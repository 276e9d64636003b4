package hist

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBranch is reported for versions that carry no branch label.
const DefaultBranch = "main"

// SchemaVersion is the history file format written by this binary.
// Schema 1 is the legacy bare JSON array of versions.
const SchemaVersion = 2

// Kind distinguishes real snapshots from marker entries.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindBranch   Kind = "branch"
)

// Version is one snapshot of a tracked file. Once appended, only IsFavorite
// and Branch are ever changed.
type Version struct {
	ID         string    `json:"id,omitempty"`
	Kind       Kind      `json:"kind,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	Format     string    `json:"format"`
	IsFavorite bool      `json:"isFavorite,omitempty"`
	Branch     string    `json:"branch,omitempty"`
}

// IsMarker reports whether v is a branch tag rather than a content snapshot.
func (v *Version) IsMarker() bool {
	return v.Kind == KindBranch
}

// BranchName returns the branch label, defaulting to "main".
func (v *Version) BranchName() string {
	if v.Branch == "" {
		return DefaultBranch
	}
	return v.Branch
}

// FormatFor returns the extension of relPath without the leading dot.
func FormatFor(relPath string) string {
	return strings.TrimPrefix(filepath.Ext(relPath), ".")
}

// TrackedFile pairs a storage key with the path it was derived from.
type TrackedFile struct {
	Key  string
	Path string
}

// SearchResult is one version whose content matched a query.
type SearchResult struct {
	Key     string
	Path    string
	Index   int
	Version Version
}

// Clock stamps new versions.
type Clock interface {
	Now() time.Time
}

// RealClock reports UTC wall time at the millisecond precision history
// files carry.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// IDGenerator assigns Version.ID.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues time-ordered (v7) UUIDs, so IDs sort in append order
// across histories. It falls back to a random v4 UUID if v7 generation fails.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
