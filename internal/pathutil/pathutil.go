// Package pathutil provides the path helpers used when deriving sandbox
// rules: symlink canonicalization, conversion of paths into policy text, and
// upward search for a marker file.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Canonicalize returns the absolute form of p with every symlink resolved.
// On macOS this turns /tmp into /private/tmp and /var/folders/... into
// /private/var/folders/.... The path must exist.
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("pathutil: cannot make %q absolute: %w", p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("pathutil: cannot resolve symlinks: %w", err)
	}
	return resolved, nil
}

// AsText reports whether p can be written into a profile as text and
// returns it unchanged if so. Paths that are not valid UTF-8 or that carry
// NUL bytes are rejected.
func AsText(p string) (string, bool) {
	if !utf8.ValidString(p) || ContainsNullByte(p) {
		return "", false
	}
	return p, true
}

// Under joins dir and name and appends a trailing separator, producing a
// prefix that matches only entries inside the directory. "/home/u" and
// ".ssh" give "/home/u/.ssh/".
func Under(dir, name string) string {
	return filepath.Join(dir, name) + string(filepath.Separator)
}

// FindUp walks from start towards the filesystem root and returns the first
// directory containing an entry named marker. It reports false when no
// ancestor has one.
func FindUp(start, marker string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ContainsNullByte returns true if the string contains a null byte.
func ContainsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00')
}
