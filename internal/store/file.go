// Package store provides the file-backed VersionStore. Each tracked path owns
// one JSON history file in the store directory, named by its PathCodec key.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hist-go/internal/hist"
)

// FileStore is the filesystem implementation of hist.VersionStore:
//
//	<dir>/
//	  src_main.go.json   (history of src/main.go)
//	  README.md.json     (history of README.md)
//
// Mutations on one key are serialized in-process and every write replaces the
// history file atomically. Reads take no lock.
type FileStore struct {
	dir    string
	codec  hist.PathCodec
	clock  hist.Clock
	idgen  hist.IDGenerator
	logger hist.Logger
	locks  *keyLocks

	subMu   sync.RWMutex
	subs    map[int]func(hist.Event)
	nextSub int
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string, clock hist.Clock, idgen hist.IDGenerator, logger hist.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating store directory: %w", hist.ErrIO, err)
	}
	return &FileStore{
		dir:    dir,
		clock:  clock,
		idgen:  idgen,
		logger: logger,
		locks:  newKeyLocks(),
		subs:   make(map[int]func(hist.Event)),
	}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// load reads the history stored under key. A missing file is reported with
// exists == false and no error.
func (s *FileStore) load(key string) (versions []hist.Version, exists bool, err error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []hist.Version{}, false, nil
		}
		return nil, false, fmt.Errorf("%w: reading %s: %w", hist.ErrIO, key, err)
	}

	versions, err = decodeHistory(data)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", hist.ErrCorrupt, key, err)
	}
	return versions, true, nil
}

func (s *FileStore) save(key, relPath string, versions []hist.Version) error {
	data, err := encodeHistory(relPath, versions)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, key), data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", hist.ErrIO, key, err)
	}
	return nil
}

// mutation edits a loaded history. Returning a nil event means nothing
// changed and the file is left alone.
type mutation func(versions []hist.Version, exists bool) ([]hist.Version, *hist.Event, error)

// mutate runs one read-modify-write cycle under the key lock and notifies
// subscribers after the lock is released.
func (s *FileStore) mutate(relPath string, fn mutation) error {
	key, err := s.codec.Encode(relPath)
	if err != nil {
		return err
	}

	event, err := func() (*hist.Event, error) {
		unlock := s.locks.lock(key)
		defer unlock()

		versions, exists, err := s.load(key)
		if err != nil {
			return nil, err
		}
		versions, event, err := fn(versions, exists)
		if err != nil || event == nil {
			return nil, err
		}
		if err := s.save(key, filepath.ToSlash(relPath), versions); err != nil {
			return nil, err
		}
		return event, nil
	}()
	if err != nil || event == nil {
		return err
	}

	event.Path = relPath
	event.Key = key
	if event.At.IsZero() {
		event.At = s.clock.Now().UTC()
	}
	s.emit(*event)
	return nil
}

func (s *FileStore) Append(relPath, content, format, branch string) (*hist.Version, error) {
	return s.appendVersion(relPath, hist.Version{
		Kind:    hist.KindSnapshot,
		Content: content,
		Format:  format,
		Branch:  branch,
	}, hist.EventAppended)
}

func (s *FileStore) TagBranch(relPath, branch string) (*hist.Version, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return nil, fmt.Errorf("%w: empty branch name", hist.ErrInvalidArgument)
	}
	return s.appendVersion(relPath, hist.Version{
		Kind:   hist.KindBranch,
		Branch: branch,
	}, hist.EventBranchTagged)
}

// appendVersion stamps v while the key lock is held, so timestamps within a
// history never decrease even when the clock steps backwards.
func (s *FileStore) appendVersion(relPath string, v hist.Version, kind hist.EventKind) (*hist.Version, error) {
	err := s.mutate(relPath, func(versions []hist.Version, _ bool) ([]hist.Version, *hist.Event, error) {
		v.ID = s.idgen.New()
		v.Path = filepath.ToSlash(relPath)
		v.Timestamp = s.clock.Now().UTC()
		if n := len(versions); n > 0 && v.Timestamp.Before(versions[n-1].Timestamp) {
			v.Timestamp = versions[n-1].Timestamp
		}
		versions = append(versions, v)
		return versions, &hist.Event{Kind: kind, Index: len(versions) - 1, At: v.Timestamp}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("version appended", "path", relPath, "kind", string(v.Kind), "id", v.ID)
	return &v, nil
}

func (s *FileStore) List(relPath string) ([]hist.Version, error) {
	key, err := s.codec.Encode(relPath)
	if err != nil {
		return nil, err
	}
	versions, _, err := s.load(key)
	return versions, err
}

func (s *FileStore) Get(relPath string, index int) (*hist.Version, error) {
	key, err := s.codec.Encode(relPath)
	if err != nil {
		return nil, err
	}
	versions, exists, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(relPath, index, versions, exists); err != nil {
		return nil, err
	}
	v := versions[index]
	return &v, nil
}

func (s *FileStore) DeleteAt(relPath string, index int) error {
	return s.mutate(relPath, func(versions []hist.Version, exists bool) ([]hist.Version, *hist.Event, error) {
		if err := checkIndex(relPath, index, versions, exists); err != nil {
			return nil, nil, err
		}
		versions = append(versions[:index], versions[index+1:]...)
		return versions, &hist.Event{Kind: hist.EventDeleted, Index: index, Count: 1}, nil
	})
}

func (s *FileStore) ToggleFavorite(relPath string, index int) (bool, error) {
	var state bool
	err := s.mutate(relPath, func(versions []hist.Version, exists bool) ([]hist.Version, *hist.Event, error) {
		if err := checkIndex(relPath, index, versions, exists); err != nil {
			return nil, nil, err
		}
		versions[index].IsFavorite = !versions[index].IsFavorite
		state = versions[index].IsFavorite
		return versions, &hist.Event{Kind: hist.EventFavoriteToggled, Index: index}, nil
	})
	return state, err
}

func (s *FileStore) Prune(relPath string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative, got %d", hist.ErrInvalidArgument, keep)
	}

	removed := 0
	err := s.mutate(relPath, func(versions []hist.Version, exists bool) ([]hist.Version, *hist.Event, error) {
		if !exists || len(versions) <= keep {
			return versions, nil, nil
		}
		removed = len(versions) - keep
		kept := make([]hist.Version, keep)
		copy(kept, versions[removed:])
		return kept, &hist.Event{Kind: hist.EventPruned, Index: -1, Count: removed}, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteHistory removes the history file for relPath. A corrupt history can
// still be deleted; this is the way to recover from one.
func (s *FileStore) DeleteHistory(relPath string) error {
	key, err := s.codec.Encode(relPath)
	if err != nil {
		return err
	}

	count, err := func() (int, error) {
		unlock := s.locks.lock(key)
		defer unlock()

		versions, exists, err := s.load(key)
		if err != nil && !errors.Is(err, hist.ErrCorrupt) {
			return 0, err
		}
		if err == nil && !exists {
			return 0, fmt.Errorf("%w: no history for %s", hist.ErrNotFound, relPath)
		}
		if err := os.Remove(filepath.Join(s.dir, key)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return 0, fmt.Errorf("%w: no history for %s", hist.ErrNotFound, relPath)
			}
			return 0, fmt.Errorf("%w: removing %s: %w", hist.ErrIO, key, err)
		}
		return len(versions), nil
	}()
	if err != nil {
		return err
	}

	s.emit(hist.Event{
		Kind:  hist.EventHistoryDeleted,
		Path:  relPath,
		Key:   key,
		Index: -1,
		Count: count,
		At:    s.clock.Now().UTC(),
	})
	return nil
}

// Files lists every history in the store directory, sorted by key. Files
// that are not canonical PathCodec keys are skipped.
func (s *FileStore) Files() ([]hist.TrackedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading store directory: %w", hist.ErrIO, err)
	}

	var files []hist.TrackedFile
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasSuffix(name, hist.KeyExt) {
			continue
		}
		relPath, err := s.codec.Decode(name)
		if err != nil {
			s.logger.Warn("skipping foreign file in store", "file", name, "error", err)
			continue
		}
		if canonical, err := s.codec.Encode(relPath); err != nil || canonical != name {
			s.logger.Warn("skipping non-canonical key in store", "file", name)
			continue
		}
		files = append(files, hist.TrackedFile{Key: name, Path: relPath})
	}
	return files, nil
}

// Search scans every history for versions whose content contains query as a
// literal, case-sensitive substring. An empty query matches nothing.
func (s *FileStore) Search(query string) ([]hist.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var results []hist.SearchResult
	for _, f := range files {
		versions, _, err := s.load(f.Key)
		if err != nil {
			if errors.Is(err, hist.ErrCorrupt) {
				s.logger.Warn("skipping corrupt history during search", "key", f.Key, "error", err)
				continue
			}
			return nil, err
		}
		for i, v := range versions {
			if strings.Contains(v.Content, query) {
				results = append(results, hist.SearchResult{Key: f.Key, Path: f.Path, Index: i, Version: v})
			}
		}
	}
	return results, nil
}

func (s *FileStore) Subscribe(fn func(hist.Event)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *FileStore) emit(e hist.Event) {
	s.subMu.RLock()
	fns := make([]func(hist.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func checkIndex(relPath string, index int, versions []hist.Version, exists bool) error {
	if !exists {
		return fmt.Errorf("%w: no history for %s", hist.ErrNotFound, relPath)
	}
	if index < 0 || index >= len(versions) {
		return fmt.Errorf("%w: %s has no version %d (have %d)", hist.ErrNotFound, relPath, index, len(versions))
	}
	return nil
}

// Compile-time check that FileStore implements hist.VersionStore interface
var _ hist.VersionStore = (*FileStore)(nil)
