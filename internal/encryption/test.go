package encryption

import (
	"bytes"
	"fmt"
	"io"

	"hist-go/internal/hist"
)

// testMagic prefixes everything TestEncryptor "encrypts".
var testMagic = []byte("HISTTEST\n")

// TestEncryptor is a deterministic stand-in for AgeEncryptor. It prefixes
// data with testMagic and checks the passphrase given to Setup on Unlock,
// so tests can exercise wrong-passphrase paths without real crypto.
type TestEncryptor struct {
	passphrase string
	configured bool
}

var _ hist.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a configured TestEncryptor with an empty passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (hist.DecryptionContext, error) {
	if passphrase != e.passphrase {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

// TestDecryptionContext strips the prefix added by TestEncryptor.
type TestDecryptionContext struct{}

var _ hist.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	head := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(head, testMagic) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
