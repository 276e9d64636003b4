package journal

import "hist-go/internal/hist"

// NopJournal discards every event. It backs journal type "none".
type NopJournal struct{}

func (NopJournal) Record(hist.Event) error                           { return nil }
func (NopJournal) Recent(int) ([]*hist.JournalEntry, error)          { return nil, nil }
func (NopJournal) ForPath(string, int) ([]*hist.JournalEntry, error) { return nil, nil }
func (NopJournal) Close() error                                      { return nil }

var _ hist.Journal = NopJournal{}
