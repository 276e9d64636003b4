package journal

import (
	"fmt"
	"path/filepath"

	"hist-go/internal/config"
	"hist-go/internal/hist"
)

// FileName is the journal database inside a workspace's .hist directory.
const FileName = "journal.db"

// NewJournalFromConfig creates a Journal based on the journal config type.
// histDir is the workspace's .hist directory.
func NewJournalFromConfig(cfg config.JournalConfig, histDir string) (hist.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		if histDir == "" {
			return nil, fmt.Errorf("workspace directory required for sqlite journal")
		}
		j, err := NewSQLiteJournal(filepath.Join(histDir, FileName))
		if err != nil {
			return nil, err
		}
		return j, nil
	case "memory":
		j, err := NewSQLiteJournal(":memory:")
		if err != nil {
			return nil, err
		}
		return j, nil
	case "none":
		return NopJournal{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
