package hist

import "io"

// Sink is a destination for exported snapshots and a source for imports.
// Objects are addressed by a slash-separated name.
type Sink interface {
	// Name returns the configured name of the sink.
	Name() string

	// Put stores size bytes read from r under name, replacing any existing
	// object.
	Put(name string, r io.Reader, size int64) error

	// Get writes the object stored under name to w. A missing object is
	// ErrNotFound.
	Get(name string, w io.Writer) error

	// ValidateSetup verifies that the sink is reachable and usable.
	ValidateSetup() error
}
