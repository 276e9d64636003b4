package encryption

import (
	"fmt"
	"path/filepath"

	"hist-go/internal/config"
	"hist-go/internal/hist"
)

// NewEncryptorFromConfig returns the export encryptor selected by cfg.Type.
// An age setup needs two distinct key files: sealing the private key over the
// public one would leave every encrypted export unreadable.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (hist.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption needs public_key_path and private_key_path")
		}
		if filepath.Clean(cfg.PublicKeyPath) == filepath.Clean(cfg.PrivateKeyPath) {
			return nil, fmt.Errorf("age public and private key paths are the same file: %s", cfg.PublicKeyPath)
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type %q (want age or test)", cfg.Type)
	}
}
