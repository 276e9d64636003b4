package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"

	"hist-go/internal/hist"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	yellow  = color.New(color.FgYellow)
	cyan    = color.New(color.FgCyan)
	green   = color.New(color.FgGreen)
	red     = color.New(color.FgRed)
	magenta = color.New(color.FgMagenta)
)

// renderLog prints one line per version, oldest first.
func renderLog(w io.Writer, versions []hist.Version) {
	for i, v := range versions {
		yellow.Fprintf(w, "%3d", i)
		fmt.Fprintf(w, "  %s  ", v.Timestamp.Local().Format(timeLayout))
		if v.IsMarker() {
			magenta.Fprintf(w, "[branch %s]", v.BranchName())
			fmt.Fprintln(w)
			continue
		}
		cyan.Fprintf(w, "%-10s", v.BranchName())
		fmt.Fprintf(w, "  %7d bytes", len(v.Content))
		if v.IsFavorite {
			yellow.Fprint(w, "  ★")
		}
		fmt.Fprintln(w)
	}
}

// renderVersion prints a header followed by the raw content.
func renderVersion(w io.Writer, index int, v *hist.Version) {
	yellow.Fprintf(w, "version %d", index)
	if v.ID != "" {
		fmt.Fprintf(w, " (%s)", v.ID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Path:   %s\n", v.Path)
	fmt.Fprintf(w, "Date:   %s\n", v.Timestamp.Local().Format(timeLayout))
	fmt.Fprintf(w, "Branch: %s\n", v.BranchName())
	if v.IsMarker() {
		magenta.Fprintln(w, "(branch marker, no content)")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, v.Content)
	if v.Content != "" && !strings.HasSuffix(v.Content, "\n") {
		fmt.Fprintln(w)
	}
}

// renderDiff writes a colored unified diff from the stored version to the
// live file. It returns false when both sides are identical.
func renderDiff(w io.Writer, c *hist.Comparison, context int) (bool, error) {
	to := "b/" + c.Path
	if c.LiveMissing {
		to = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(c.Version.Content),
		B:        difflib.SplitLines(c.Current),
		FromFile: fmt.Sprintf("a/%s@%d", c.Path, c.Index),
		ToFile:   to,
		Context:  context,
	})
	if err != nil {
		return false, fmt.Errorf("computing diff: %w", err)
	}
	if text == "" {
		return false, nil
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			green.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			red.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			cyan.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
	return true, nil
}

// renderSearch prints "path@index: first matching line".
func renderSearch(w io.Writer, results []hist.SearchResult, query string) {
	for _, r := range results {
		yellow.Fprintf(w, "%s@%d", r.Path, r.Index)
		fmt.Fprintf(w, ": %s\n", matchingLine(r.Version.Content, query))
	}
}

func matchingLine(content, query string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, query) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func renderFiles(w io.Writer, files []hist.TrackedFile) {
	for _, f := range files {
		fmt.Fprintf(w, "%s", f.Path)
		color.New(color.Faint).Fprintf(w, "  (%s)", f.Key)
		fmt.Fprintln(w)
	}
}

func renderJournal(w io.Writer, entries []*hist.JournalEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "#%-5d %s  ", e.ID, e.OccurredAt.Local().Format(timeLayout))
		cyan.Fprintf(w, "%-16s", e.Kind)
		fmt.Fprintf(w, "  %s", e.Path)
		if e.Index >= 0 {
			fmt.Fprintf(w, "@%d", e.Index)
		}
		if e.Count > 0 {
			fmt.Fprintf(w, "  (%d removed)", e.Count)
		}
		fmt.Fprintln(w)
	}
}
