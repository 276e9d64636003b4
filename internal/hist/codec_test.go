package hist

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestPathCodec_Encode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "README.md", want: "README.md.json"},
		{in: "src/x.txt", want: "src_x.txt.json"},
		{in: `src\x.txt`, want: "src_x.txt.json"},
		{in: "a_b/c.txt", want: "a%5Fb_c.txt.json"},
		{in: "a/b_c.txt", want: "a_b%5Fc.txt.json"},
		{in: "100%/x", want: "100%25_x.json"},
		{in: "what?.txt", want: "what%3F.txt.json"},
		{in: ".env", want: ".env.json"},
		{in: "日本/語.txt", want: "日本_語.txt.json"},
	}
	codec := PathCodec{}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := codec.Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Encode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPathCodec_EncodeInvalid(t *testing.T) {
	codec := PathCodec{}
	for _, in := range []string{"", "/etc/passwd", "a//b", "a/./b", "../x", "a/..", "dir/"} {
		if _, err := codec.Encode(in); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Encode(%q) error = %v, want ErrInvalidPath", in, err)
		}
	}
}

func TestPathCodec_RoundTrip(t *testing.T) {
	paths := []string{
		"a.txt",
		"src/x.txt",
		"a_b/c.txt",
		"a/b_c.txt",
		"a_b_c.txt",
		"dir/sub/deep/file.go",
		"50%_off.md",
		"%5F.txt",
		"tab\there",
		"quote\"d/pipe|d",
		"space in name/x y.txt",
	}
	codec := PathCodec{}
	seen := map[string]string{}
	for _, p := range paths {
		key, err := codec.Encode(p)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", p, err)
		}
		if other, dup := seen[key]; dup {
			t.Errorf("Encode(%q) and Encode(%q) both = %q", p, other, key)
		}
		seen[key] = p

		got, err := codec.Decode(key)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", key, err)
		}
		if got != filepath.FromSlash(p) {
			t.Errorf("Decode(Encode(%q)) = %q", p, got)
		}
	}
}

func TestPathCodec_UnderscoreCollision(t *testing.T) {
	codec := PathCodec{}
	k1, _ := codec.Encode("a_b/c.txt")
	k2, _ := codec.Encode("a/b_c.txt")
	k3, _ := codec.Encode("a_b_c.txt")
	if k1 == k2 || k1 == k3 || k2 == k3 {
		t.Errorf("keys collide: %q %q %q", k1, k2, k3)
	}
}

func TestPathCodec_DecodeInvalid(t *testing.T) {
	codec := PathCodec{}
	for _, key := range []string{
		"no-suffix",
		".json",
		"a%2.json",
		"a%zz.json",
		"_a.json",
		"a__b.json",
		"a_%2E%2E_b.json",
		"a%5fb.json",
		"a%41.json",
	} {
		if _, err := codec.Decode(key); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidPath", key, err)
		}
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"a.go":         "go",
		"src/x.tar.gz": "gz",
		"Makefile":     "",
		".env":         "env",
	}
	for in, want := range tests {
		if got := FormatFor(in); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseActionKind(t *testing.T) {
	for _, k := range ActionKinds() {
		got, err := ParseActionKind(k.String())
		if err != nil {
			t.Fatalf("ParseActionKind(%q) error = %v", k.String(), err)
		}
		if got != k {
			t.Errorf("ParseActionKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if _, err := ParseActionKind("merge"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseActionKind(merge) error = %v, want ErrInvalidArgument", err)
	}
}
