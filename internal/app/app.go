package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"hist-go/internal/config"
	"hist-go/internal/encryption"
	"hist-go/internal/fs"
	"hist-go/internal/hist"
	"hist-go/internal/journal"
	"hist-go/internal/sink"
	"hist-go/internal/store"
)

// HistApp is the application layer between the CLI and HistService.
// It constructs all dependencies from config and a workspace root, exposes
// high-level operations that accept raw string paths, and releases the
// journal and log file on Close.
type HistApp struct {
	cfg         *config.Config
	root        string
	store       *store.FileStore
	workspace   *fs.OSWorkspace
	journal     hist.Journal
	sinks       []hist.Sink
	encryptor   hist.Encryptor
	service     *hist.HistService
	logger      hist.Logger
	unsubscribe func()
	logFile     *os.File
}

// Options tweaks NewHistApp for tests and embedders.
type Options struct {
	Stderr io.Writer // defaults to os.Stderr
}

// NewHistApp creates a fully wired HistApp for the workspace at root.
// command names the CLI command being run and is stamped on every log line.
// The caller must call Close when done.
func NewHistApp(cfg *config.Config, root, command string, opts Options) (*HistApp, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runID := time.Now().UTC().Format("20060102T150405Z") + "/" + command
	slogger, logFile, err := newLogger(cfg.LogDir, cfg.LogLevel, runID, stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &HistApp{cfg: cfg, root: root, logger: logger, logFile: logFile}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *HistApp) init() error {
	// The .hist directory is never snapshotted, whatever the config says.
	ignore := append([]string{config.WorkspaceDir}, a.cfg.Filesystem.Ignore...)
	ws, err := fs.NewOSWorkspace(a.root, ignore)
	if err != nil {
		return fmt.Errorf("opening workspace: %w", err)
	}
	a.workspace = ws

	histDir := filepath.Join(ws.Root(), config.WorkspaceDir)
	st, err := store.NewFileStore(filepath.Join(histDir, a.cfg.Store.Dir), hist.RealClock{}, hist.UUIDGenerator{}, a.logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.store = st

	j, err := journal.NewJournalFromConfig(a.cfg.Journal, histDir)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	a.journal = j
	a.unsubscribe = st.Subscribe(func(e hist.Event) {
		if err := j.Record(e); err != nil {
			a.logger.Warn("journal record failed", "kind", e.Kind, "path", e.Path, "error", err)
		}
	})

	sinks, err := sink.NewSinksFromConfig(a.cfg.Sinks)
	if err != nil {
		return fmt.Errorf("creating sinks: %w", err)
	}
	a.sinks = sinks

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	a.service = hist.NewHistService(st, ws, sinks, enc, a.logger, a.cfg.Store.MaxVersions)
	return nil
}

// Root returns the absolute workspace root.
func (a *HistApp) Root() string {
	return a.workspace.Root()
}

// Service returns the underlying service for embedders.
func (a *HistApp) Service() *hist.HistService {
	return a.service
}

func (a *HistApp) rel(rawPath string) (string, error) {
	p, err := a.workspace.Rel(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return p, nil
}

// Save snapshots rawPath. A directory saves every file below it (descending
// into subdirectories when recursive). Returns the number of versions saved.
func (a *HistApp) Save(rawPath string, recursive bool, branch string) (int, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, err
	}

	if info.IsDir() {
		relDir := "."
		if abs != a.Root() {
			if relDir, err = a.rel(abs); err != nil {
				return 0, err
			}
		}
		return a.service.SaveTree(relDir, recursive, branch)
	}

	p, err := a.rel(abs)
	if err != nil {
		return 0, err
	}
	if _, err := a.service.Save(p, branch); err != nil {
		return 0, err
	}
	return 1, nil
}

// Import appends the content of the local file from as a new version of rawPath.
func (a *HistApp) Import(rawPath, from, branch string) (*hist.Version, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(from)
	if err != nil {
		return nil, fmt.Errorf("opening import source: %w", err)
	}
	defer f.Close()
	return a.service.Import(p, f, branch)
}

// ImportFromSink appends an object from a sink as a new version of rawPath.
// When decrypt is set the private key is unlocked with passphrase first.
func (a *HistApp) ImportFromSink(rawPath, sinkName, object string, decrypt bool, passphrase, branch string) (*hist.Version, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	var dec hist.DecryptionContext
	if decrypt {
		if dec, err = a.encryptor.Unlock(passphrase); err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.ImportFromSink(p, sinkName, object, dec, branch)
}

// Log returns the history of rawPath and its workspace-relative form.
func (a *HistApp) Log(rawPath string) (string, []hist.Version, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return "", nil, err
	}
	versions, err := a.store.List(p)
	return p, versions, err
}

// Show returns one version of rawPath.
func (a *HistApp) Show(rawPath string, index int) (*hist.Version, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	return a.store.Get(p, index)
}

// Restore overwrites the live file with the version at index.
func (a *HistApp) Restore(rawPath string, index int) (*hist.Version, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.Restore(p, index)
}

// Compare returns the version at index and the live content of rawPath.
func (a *HistApp) Compare(rawPath string, index int) (*hist.Comparison, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.Compare(p, index)
}

// ExportTo writes the version at index to w.
func (a *HistApp) ExportTo(rawPath string, index int, w io.Writer, encrypt bool) error {
	p, err := a.rel(rawPath)
	if err != nil {
		return err
	}
	return a.service.ExportTo(p, index, w, encrypt)
}

// Export uploads the version at index to a sink and returns the object name.
func (a *HistApp) Export(rawPath string, index int, sinkName, object string, encrypt bool) (string, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return "", err
	}
	return a.service.Export(p, index, sinkName, object, encrypt)
}

// Remove deletes the version at index.
func (a *HistApp) Remove(rawPath string, index int) error {
	p, err := a.rel(rawPath)
	if err != nil {
		return err
	}
	return a.store.DeleteAt(p, index)
}

// Drop deletes the whole history of rawPath.
func (a *HistApp) Drop(rawPath string) error {
	p, err := a.rel(rawPath)
	if err != nil {
		return err
	}
	return a.store.DeleteHistory(p)
}

// Prune keeps the newest keep versions of rawPath.
func (a *HistApp) Prune(rawPath string, keep int) (int, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return 0, err
	}
	return a.store.Prune(p, keep)
}

// ToggleFavorite flips the favorite flag of the version at index.
func (a *HistApp) ToggleFavorite(rawPath string, index int) (bool, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return false, err
	}
	return a.store.ToggleFavorite(p, index)
}

// TagBranch appends a branch marker to rawPath's history.
func (a *HistApp) TagBranch(rawPath, branch string) (*hist.Version, error) {
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	return a.store.TagBranch(p, branch)
}

// Search finds versions whose content contains query.
func (a *HistApp) Search(query string) ([]hist.SearchResult, error) {
	return a.store.Search(query)
}

// Files lists every tracked path.
func (a *HistApp) Files() ([]hist.TrackedFile, error) {
	return a.store.Files()
}

// Journal returns recent journal entries, limited to rawPath when non-empty.
func (a *HistApp) Journal(rawPath string, limit int) ([]*hist.JournalEntry, error) {
	if rawPath == "" {
		return a.journal.Recent(limit)
	}
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	return a.journal.ForPath(p, limit)
}

// Act runs a named action (see hist.ActionKinds) against the version at index.
func (a *HistApp) Act(kindName, rawPath string, index int) (*hist.ActionResult, error) {
	kind, err := hist.ParseActionKind(kindName)
	if err != nil {
		return nil, err
	}
	p, err := a.rel(rawPath)
	if err != nil {
		return nil, err
	}
	return a.service.PerformAction(kind, p, index)
}

// SinkCheck is the outcome of validating one export sink.
type SinkCheck struct {
	Name string
	Err  error
}

// CheckSinks validates every configured sink, in config order. The first
// entry is the default export destination.
func (a *HistApp) CheckSinks() []SinkCheck {
	checks := make([]SinkCheck, len(a.sinks))
	for i, s := range a.sinks {
		checks[i] = SinkCheck{Name: s.Name(), Err: s.ValidateSetup()}
		if checks[i].Err != nil {
			a.logger.Warn("sink validation failed", "sink", s.Name(), "error", checks[i].Err)
		}
	}
	return checks
}

// Close detaches the journal and closes all resources.
func (a *HistApp) Close() error {
	var firstErr error
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
