package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults holds the default locations used when the CLI has no flags.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - HIST_CONFIG_PATH: config file location (default: ~/.config/hist.toml)
//   - HIST_HOME: base directory for hist data (default: ~/.local/share/hist)
func GetDefaults() (*Defaults, error) {
	configPath, err := envOrHome("HIST_CONFIG_PATH", ".config", "hist.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("HIST_HOME", ".local", "share", "hist")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns $key when set, otherwise the home directory joined with elems.
func envOrHome(key string, elems ...string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
