package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile is the per-workspace ignore file, read from the workspace root.
const IgnoreFile = ".histignore"

// ignoreRule is one parsed ignore pattern.
type ignoreRule struct {
	glob     string
	anchored bool // contains '/': matched against the whole relative path
	dirOnly  bool // trailing '/': matches directories only
}

// IgnoreMatcher decides which workspace entries are never snapshotted.
// Patterns without '/' match any path segment's basename; patterns with '/'
// match the full slash-separated relative path. A trailing '/' restricts a
// pattern to directories, and an ignored directory hides everything below it.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses raw patterns. Blank lines and '#' comments are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var rules []ignoreRule
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		r := ignoreRule{}
		if strings.HasSuffix(raw, "/") {
			r.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		raw = strings.TrimPrefix(raw, "/")
		r.anchored = strings.Contains(raw, "/")
		r.glob = raw
		rules = append(rules, r)
	}
	return &IgnoreMatcher{rules: rules}
}

// Match reports whether relPath (platform or slash separated) is ignored.
// isDir says whether relPath itself is a directory.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}
	p := filepath.ToSlash(relPath)
	base := p[strings.LastIndex(p, "/")+1:]

	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		target := base
		if r.anchored {
			target = p
		}
		// Malformed patterns never match.
		if ok, err := filepath.Match(r.glob, target); err == nil && ok {
			return true
		}
	}
	return false
}

// Len returns the number of active patterns.
func (m *IgnoreMatcher) Len() int {
	return len(m.rules)
}

// ParseIgnoreFile reads an ignore file and returns its raw lines.
// A missing file yields nil and no error.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
