package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// WorkspaceDir is the directory that marks a workspace root and holds its
// history store and journal.
const WorkspaceDir = ".hist"

// Config represents the main configuration for hist.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Store      StoreConfig      `toml:"store"`
	Journal    JournalConfig    `toml:"journal"`
	Sinks      []SinkConfig     `toml:"sinks"`
	Encryption EncryptionConfig `toml:"encryption"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// StoreConfig controls the per-workspace history store.
type StoreConfig struct {
	Dir         string `toml:"dir"`          // relative to the workspace .hist directory; defaults to "store"
	MaxVersions int    `toml:"max_versions"` // prune each history to this many versions after a save; 0 disables
}

// JournalConfig represents configuration for the mutation journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type string `toml:"type"` // "sqlite" (default), "memory" or "none"
}

// SinkConfig represents configuration for an export sink.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SinkConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services; enables path-style addressing

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encrypted exports.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	Armor          bool   `toml:"armor"` // ASCII-armor encrypted exports
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Store:    StoreConfig{Dir: "store"},
		Journal:  JournalConfig{Type: "sqlite"},
		Sinks: []SinkConfig{
			{Type: "filesystem", Name: "local", FSRoot: filepath.Join(baseDir, "exports")},
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "hist.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "hist.key"),
		},
		Filesystem: FilesystemConfig{
			Ignore: []string{".git", "node_modules", WorkspaceDir},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, falling back to NewConfig(baseDir) when the
// file does not exist. Empty fields of a file-based config are filled from
// the defaults.
func Load(path, baseDir string) (*Config, error) {
	defaults := NewConfig(baseDir)

	cfg, err := ReadFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = defaults.BaseDir
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = defaults.Store.Dir
	}
	if cfg.Journal.Type == "" {
		cfg.Journal.Type = defaults.Journal.Type
	}
	if cfg.Encryption.PublicKeyPath == "" {
		cfg.Encryption.PublicKeyPath = filepath.Join(cfg.BaseDir, "keys", "hist.pub")
	}
	if cfg.Encryption.PrivateKeyPath == "" {
		cfg.Encryption.PrivateKeyPath = filepath.Join(cfg.BaseDir, "keys", "hist.key")
	}
	if cfg.Store.MaxVersions < 0 {
		return nil, fmt.Errorf("store.max_versions must not be negative, got %d", cfg.Store.MaxVersions)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// FindWorkspaceRoot walks up from dir to the nearest directory containing a
// .hist directory.
func FindWorkspaceRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		marker := filepath.Join(dir, WorkspaceDir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a hist workspace (or any parent up to root); run `hist init`")
		}
		dir = parent
	}
}

// InitWorkspace creates the .hist directory in dir.
func InitWorkspace(dir string) (string, error) {
	marker := filepath.Join(dir, WorkspaceDir)
	if _, err := os.Stat(marker); err == nil {
		return "", fmt.Errorf("hist workspace already exists at %s", dir)
	}
	if err := os.MkdirAll(marker, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", WorkspaceDir, err)
	}
	return marker, nil
}
