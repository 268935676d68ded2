package pathutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizeResolvesSymlink(t *testing.T) {
	base := realTempDir(t)
	target := filepath.Join(base, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := Canonicalize(link)
	if err != nil {
		t.Fatalf("Canonicalize() error: %v", err)
	}
	if got != target {
		t.Errorf("Canonicalize(%q) = %q, want %q", link, got, target)
	}
}

func TestCanonicalizeTrailingSlash(t *testing.T) {
	base := realTempDir(t)
	got, err := Canonicalize(base + "/")
	if err != nil {
		t.Fatalf("Canonicalize() error: %v", err)
	}
	if got != base {
		t.Errorf("Canonicalize() = %q, want %q", got, base)
	}
}

func TestCanonicalizeMissing(t *testing.T) {
	_, err := Canonicalize(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v does not wrap a not-exist error", err)
	}
}

func TestAsText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"plain", "/ws/project", true},
		{"unicode", "/Users/zoë/src", true},
		{"spaces", "/Users/u/My Projects", true},
		{"empty", "", true},
		{"nul byte", "/tmp/a\x00b", false},
		{"invalid utf8", "/tmp/\xff\xfe", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsText(tt.in)
			if ok != tt.ok {
				t.Fatalf("AsText(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.in {
				t.Errorf("AsText(%q) = %q, want input unchanged", tt.in, got)
			}
		})
	}
}

func TestUnder(t *testing.T) {
	tests := []struct {
		dir, name, want string
	}{
		{"/home/u", ".ssh", "/home/u/.ssh/"},
		{"/home/u/", ".rustup", "/home/u/.rustup/"},
		{"/", ".ssh", "/.ssh/"},
	}
	for _, tt := range tests {
		if got := Under(tt.dir, tt.name); got != tt.want {
			t.Errorf("Under(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	mkFile(t, root, "Cargo.toml")
	deep := filepath.Join(root, "crates", "a", "src")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := FindUp(deep, "Cargo.toml")
	if !ok {
		t.Fatal("FindUp() found nothing")
	}
	if got != root {
		t.Errorf("FindUp() = %q, want %q", got, root)
	}

	// The nearest marker wins.
	mkFile(t, filepath.Join(root, "crates", "a"), "Cargo.toml")
	got, ok = FindUp(deep, "Cargo.toml")
	if !ok || got != filepath.Join(root, "crates", "a") {
		t.Errorf("FindUp() = (%q, %v), want nearest ancestor", got, ok)
	}
}

func TestFindUpMissing(t *testing.T) {
	dir := t.TempDir()
	if got, ok := FindUp(dir, "no-such-marker-7f3a9c"); ok {
		t.Errorf("FindUp() = %q, want not found", got)
	}
}

func TestContainsNullByte(t *testing.T) {
	if ContainsNullByte("/usr/bin") {
		t.Error("plain path reported as containing NUL")
	}
	if !ContainsNullByte("a\x00") {
		t.Error("NUL not detected")
	}
}

// realTempDir returns a fresh temp directory with symlinks already resolved,
// so comparisons are stable on macOS where /var is a symlink.
func realTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func mkFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatal(err)
	}
}
