package hist

// Workspace gives the service access to live files. Paths are relative to the
// workspace root.
type Workspace interface {
	// Root returns the absolute workspace root.
	Root() string

	// Rel converts a raw (absolute or cwd-relative) path into a
	// workspace-relative one. Paths outside the workspace are ErrInvalidPath.
	Rel(rawPath string) (string, error)

	// ReadFile returns the live content of relPath.
	ReadFile(relPath string) ([]byte, error)

	// WriteFile replaces the live content of relPath, creating parent
	// directories as needed.
	WriteFile(relPath string, data []byte) error

	// FindFiles lists non-ignored regular files under relDir ("" or "." for
	// the root), as workspace-relative paths.
	FindFiles(relDir string, recursive bool) ([]string, error)
}
