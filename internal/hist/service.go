package hist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// Logger receives the store and service diagnostics. Args are slog-style
// key/value pairs. Failures that callers see as errors are not logged again.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// NopLogger drops everything.
type NopLogger struct{}

func NewNopLogger() NopLogger { return NopLogger{} }

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}

// HistService is the orchestration layer that ties the version store to the
// live workspace, export sinks and encryption. It implements the actions the
// CLI and other embedders expose.
type HistService struct {
	store       VersionStore
	workspace   Workspace
	sinks       []Sink
	encryptor   Encryptor
	logger      Logger
	maxVersions int
}

// NewHistService creates a new HistService with the provided dependencies.
// The first sink is the default export destination. maxVersions > 0 prunes
// each history to that length after every save.
func NewHistService(store VersionStore, workspace Workspace, sinks []Sink, encryptor Encryptor, logger Logger, maxVersions int) *HistService {
	return &HistService{
		store:       store,
		workspace:   workspace,
		sinks:       sinks,
		encryptor:   encryptor,
		logger:      logger,
		maxVersions: maxVersions,
	}
}

// Store returns the underlying version store.
func (s *HistService) Store() VersionStore {
	return s.store
}

// Save snapshots the live content of relPath.
func (s *HistService) Save(relPath, branch string) (*Version, error) {
	data, err := s.workspace.ReadFile(relPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return s.appendAndPrune(relPath, string(data), branch)
}

// SaveTree snapshots every non-ignored file under relDir and returns how many
// were saved. It stops at the first failure; the count then covers the files
// saved before it.
func (s *HistService) SaveTree(relDir string, recursive bool, branch string) (int, error) {
	files, err := s.workspace.FindFiles(relDir, recursive)
	if err != nil {
		return 0, fmt.Errorf("finding files: %w", err)
	}
	for i, f := range files {
		if _, err := s.Save(f, branch); err != nil {
			return i, err
		}
	}
	return len(files), nil
}

// Import appends content read from r as a new version of relPath.
func (s *HistService) Import(relPath string, r io.Reader, branch string) (*Version, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	return s.appendAndPrune(relPath, string(data), branch)
}

// ImportFromSink appends the object stored in a sink as a new version of
// relPath. When dec is non-nil the object is decrypted first.
func (s *HistService) ImportFromSink(relPath, sinkName, object string, dec DecryptionContext, branch string) (*Version, error) {
	sink, err := s.sink(sinkName)
	if err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	if err := sink.Get(object, &raw); err != nil {
		return nil, fmt.Errorf("fetching %s from sink %s: %w", object, sink.Name(), err)
	}

	if dec == nil {
		return s.Import(relPath, &raw, branch)
	}
	var plain bytes.Buffer
	if err := dec.Decrypt(&raw, &plain); err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", object, err)
	}
	return s.Import(relPath, &plain, branch)
}

func (s *HistService) appendAndPrune(relPath, content, branch string) (*Version, error) {
	v, err := s.store.Append(relPath, content, FormatFor(relPath), branch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("version saved", "path", relPath, "bytes", len(content))

	if s.maxVersions > 0 {
		removed, err := s.store.Prune(relPath, s.maxVersions)
		if err != nil {
			return nil, fmt.Errorf("pruning %s: %w", relPath, err)
		}
		if removed > 0 {
			s.logger.Info("history pruned", "path", relPath, "removed", removed)
		}
	}
	return v, nil
}

// snapshot returns the version at index, refusing branch markers.
func (s *HistService) snapshot(relPath string, index int) (*Version, error) {
	v, err := s.store.Get(relPath, index)
	if err != nil {
		return nil, err
	}
	if v.IsMarker() {
		return nil, fmt.Errorf("%s version %d: %w", relPath, index, ErrNotSnapshot)
	}
	return v, nil
}

// Restore overwrites the live file with the content of the version at index.
func (s *HistService) Restore(relPath string, index int) (*Version, error) {
	v, err := s.snapshot(relPath, index)
	if err != nil {
		return nil, err
	}
	if err := s.workspace.WriteFile(relPath, []byte(v.Content)); err != nil {
		return nil, fmt.Errorf("writing %s: %w", relPath, err)
	}
	s.logger.Info("version restored", "path", relPath, "index", index)
	return v, nil
}

// Comparison holds the two sides of a diff between a stored version and the
// live file.
type Comparison struct {
	Path        string
	Index       int
	Version     *Version
	Current     string
	LiveMissing bool
}

// Compare returns the version at index alongside the live content of relPath.
// A missing live file compares as empty.
func (s *HistService) Compare(relPath string, index int) (*Comparison, error) {
	v, err := s.snapshot(relPath, index)
	if err != nil {
		return nil, err
	}
	c := &Comparison{Path: relPath, Index: index, Version: v}

	data, err := s.workspace.ReadFile(relPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.LiveMissing = true
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	default:
		c.Current = string(data)
	}
	return c, nil
}

// ExportTo writes the content of the version at index to w, encrypted when
// encrypt is set.
func (s *HistService) ExportTo(relPath string, index int, w io.Writer, encrypt bool) error {
	v, err := s.snapshot(relPath, index)
	if err != nil {
		return err
	}
	return s.writeContent(v, w, encrypt)
}

// Export uploads the content of the version at index to a sink and returns
// the object name used. An empty sinkName selects the default sink; an empty
// object selects ObjectName.
func (s *HistService) Export(relPath string, index int, sinkName, object string, encrypt bool) (string, error) {
	sink, err := s.sink(sinkName)
	if err != nil {
		return "", err
	}
	v, err := s.snapshot(relPath, index)
	if err != nil {
		return "", err
	}
	if object == "" {
		if object, err = ObjectName(relPath, index, v, encrypt); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := s.writeContent(v, &buf, encrypt); err != nil {
		return "", err
	}
	if err := sink.Put(object, &buf, int64(buf.Len())); err != nil {
		return "", fmt.Errorf("uploading to sink %s: %w", sink.Name(), err)
	}

	s.logger.Info("version exported", "path", relPath, "index", index, "sink", sink.Name(), "object", object)
	return object, nil
}

func (s *HistService) writeContent(v *Version, w io.Writer, encrypt bool) error {
	if !encrypt {
		if _, err := io.WriteString(w, v.Content); err != nil {
			return fmt.Errorf("writing content: %w", err)
		}
		return nil
	}
	if s.encryptor == nil || !s.encryptor.IsConfigured() {
		return fmt.Errorf("encryption requested but no keys are configured (run `hist keys init`)")
	}
	if err := s.encryptor.Encrypt(strings.NewReader(v.Content), w); err != nil {
		return fmt.Errorf("encrypting content: %w", err)
	}
	return nil
}

// ObjectName builds the default sink object name for an exported version:
//
//	<storage key without extension>/<timestamp>-<index>[.<format>][.age]
func ObjectName(relPath string, index int, v *Version, encrypted bool) (string, error) {
	key, err := PathCodec{}.Encode(relPath)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s/%s-%d", strings.TrimSuffix(key, KeyExt), v.Timestamp.UTC().Format("20060102T150405Z"), index)
	if v.Format != "" {
		name += "." + v.Format
	}
	if encrypted {
		name += ".age"
	}
	return name, nil
}

func (s *HistService) sink(name string) (Sink, error) {
	if len(s.sinks) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}
	if name == "" {
		return s.sinks[0], nil
	}
	for _, sk := range s.sinks {
		if sk.Name() == name {
			return sk, nil
		}
	}
	return nil, fmt.Errorf("%w: sink %q", ErrNotFound, name)
}

// PerformAction runs one action against the version at index. Export uses the
// default sink and object name.
func (s *HistService) PerformAction(kind ActionKind, relPath string, index int) (*ActionResult, error) {
	res := &ActionResult{Kind: kind}
	var err error

	switch kind {
	case ActionPreview:
		res.Version, err = s.store.Get(relPath, index)
	case ActionApply:
		res.Version, err = s.Restore(relPath, index)
	case ActionCompare:
		res.Comparison, err = s.Compare(relPath, index)
		if err == nil {
			res.Version = res.Comparison.Version
		}
	case ActionExport:
		res.Object, err = s.Export(relPath, index, "", "", false)
	case ActionDelete:
		err = s.store.DeleteAt(relPath, index)
	case ActionToggleFavorite:
		res.Favorite, err = s.store.ToggleFavorite(relPath, index)
	default:
		return nil, fmt.Errorf("%w: unknown action %v", ErrInvalidArgument, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s[%d]: %w", kind, relPath, index, err)
	}
	return res, nil
}
