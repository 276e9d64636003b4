package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"hist-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T, armored bool) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "hist.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "hist.key"),
		Armor:          armored,
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t, false)

	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
	if err := e.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestAgeEncryptor_SetupRefusesOverwrite(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t, false)
	if err := e.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	pub, _ := os.ReadFile(e.publicKeyPath)

	if err := e.Setup("pw"); err == nil {
		t.Fatal("second Setup() expected error")
	}
	again, _ := os.ReadFile(e.publicKeyPath)
	if !bytes.Equal(pub, again) {
		t.Error("public key changed after refused Setup")
	}
}

func TestAgeEncryptor_SetupEmptyPassphrase(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t, false)
	if err := e.Setup(""); err == nil {
		t.Error("Setup(\"\") expected error")
	}
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		armored bool
	}{
		{name: "binary", input: "package main\n\nfunc main() {}\n"},
		{name: "armored", input: "package main\n\nfunc main() {}\n", armored: true},
		{name: "empty", input: ""},
		{name: "large armored", input: strings.Repeat("line of text\n", 5000), armored: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestAgeEncryptor(t, tt.armored)
			if err := e.Setup("secret"); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			var sealed bytes.Buffer
			if err := e.Encrypt(strings.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if tt.armored && !strings.HasPrefix(sealed.String(), "-----BEGIN AGE ENCRYPTED FILE-----") {
				t.Errorf("armored output missing header: %q", sealed.String()[:40])
			}
			if tt.input != "" && strings.Contains(sealed.String(), tt.input) {
				t.Error("ciphertext contains plaintext")
			}

			dc, err := e.Unlock("secret")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var plain bytes.Buffer
			if err := dc.Decrypt(&sealed, &plain); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if plain.String() != tt.input {
				t.Errorf("round trip = %d bytes, want %d", plain.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_MultipleRecipients(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t, false)
	if err := e.Setup("secret"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(e.publicKeyPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(other.Recipient().String() + "\n")
	f.Close()

	var sealed bytes.Buffer
	if err := e.Encrypt(strings.NewReader("shared"), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	r, err := age.Decrypt(bytes.NewReader(sealed.Bytes()), other)
	if err != nil {
		t.Fatalf("second recipient cannot decrypt: %v", err)
	}
	var plain bytes.Buffer
	plain.ReadFrom(r)
	if plain.String() != "shared" {
		t.Errorf("second recipient got %q", plain.String())
	}
}

func TestAgeEncryptor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase", func(t *testing.T) {
		e := newTestAgeEncryptor(t, false)
		if err := e.Setup("right"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if _, err := e.Unlock("wrong"); err == nil {
			t.Error("Unlock() with wrong passphrase should return error")
		}
	})

	t.Run("encrypt before setup", func(t *testing.T) {
		e := newTestAgeEncryptor(t, false)
		var buf bytes.Buffer
		if err := e.Encrypt(strings.NewReader("x"), &buf); err == nil {
			t.Error("Encrypt() before Setup should return error")
		}
	})

	t.Run("unlock before setup", func(t *testing.T) {
		e := newTestAgeEncryptor(t, false)
		if _, err := e.Unlock("pw"); err == nil {
			t.Error("Unlock() before Setup should return error")
		}
	})
}
