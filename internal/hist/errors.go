package hist

import "errors"

// Error kinds returned by the store and service. Callers match them with
// errors.Is; the wrapped message carries the path and index.
var (
	ErrNotFound        = errors.New("not found")
	ErrCorrupt         = errors.New("corrupt history")
	ErrIO              = errors.New("storage i/o failure")
	ErrInvalidPath     = errors.New("invalid path")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSnapshot     = errors.New("version is a branch marker, not a snapshot")
)
