package hist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// KeyExt is the extension of every history file in the store directory.
const KeyExt = ".json"

const hexDigits = "0123456789ABCDEF"

// PathCodec maps workspace-relative paths to storage keys and back.
//
// Separators become '_', so keys stay readable in a directory listing. Literal
// '_' and '%' are percent-escaped, as are bytes that are not allowed in file
// names on common platforms, which makes the mapping injective:
//
//	a_b/c.txt -> a%5Fb_c.txt.json
//	a/b_c.txt -> a_b%5Fc.txt.json
type PathCodec struct{}

// Encode returns the storage key for relPath. Backslashes are treated as
// separators. relPath must be relative and canonical: no empty, "." or ".."
// segments.
func (PathCodec) Encode(relPath string) (string, error) {
	p := strings.ReplaceAll(relPath, `\`, "/")
	if err := validateRelPath(p); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPath, relPath, err)
	}

	var b strings.Builder
	b.Grow(len(p) + len(KeyExt))
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '/':
			b.WriteByte('_')
		case needsEscape(c):
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString(KeyExt)
	return b.String(), nil
}

// Decode returns the relative path, using the platform separator, that
// encodes to key. Only keys Encode can produce are accepted: escapes use
// uppercase hex and only cover bytes Encode escapes.
func (PathCodec) Decode(key string) (string, error) {
	body, ok := strings.CutSuffix(key, KeyExt)
	if !ok || body == "" {
		return "", fmt.Errorf("%w: key %q lacks %s suffix", ErrInvalidPath, key, KeyExt)
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '_':
			b.WriteByte('/')
		case '%':
			if i+2 >= len(body) {
				return "", fmt.Errorf("%w: key %q has truncated escape", ErrInvalidPath, key)
			}
			hi, ok1 := unhex(body[i+1])
			lo, ok2 := unhex(body[i+2])
			if !ok1 || !ok2 || !needsEscape(hi<<4|lo) {
				return "", fmt.Errorf("%w: key %q has non-canonical escape %q", ErrInvalidPath, key, body[i:i+3])
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		default:
			b.WriteByte(c)
		}
	}

	p := b.String()
	if err := validateRelPath(p); err != nil {
		return "", fmt.Errorf("%w: key %q decodes to %q: %v", ErrInvalidPath, key, p, err)
	}
	return filepath.FromSlash(p), nil
}

func validateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return fmt.Errorf("path is absolute")
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return fmt.Errorf("empty path segment")
		case ".", "..":
			return fmt.Errorf("relative segment %q", seg)
		}
	}
	return nil
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '%', '_', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return false
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
