package sink

import (
	"fmt"
	"path"
	"strings"

	"hist-go/internal/hist"
)

// cleanObjectName validates a slash-separated object name.
func cleanObjectName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: object name %q", hist.ErrInvalidPath, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: object name %q", hist.ErrInvalidPath, name)
		}
	}
	return path.Clean(name), nil
}
