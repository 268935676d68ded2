package cargosafe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/zhangyunhao116/cargosafe/seatbelt"
)

// ProfileFileName is the name of the profile written into the staging
// directory.
const ProfileFileName = "cargo-safe.sb"

// Subdirectories of the staging directory handed to cargo.
const (
	cargoHomeDir = "cargo"
	targetDir    = "target"
)

// CargoHome returns the CARGO_HOME used for builds staged in sandboxDir.
func CargoHome(sandboxDir string) string { return filepath.Join(sandboxDir, cargoHomeDir) }

// TargetDir returns the CARGO_TARGET_DIR used for builds staged in sandboxDir.
func TargetDir(sandboxDir string) string { return filepath.Join(sandboxDir, targetDir) }

// PrepareSandboxDir creates the staging directory along with its cargo home
// and target subdirectories. Existing directories are left untouched.
func PrepareSandboxDir(sandboxDir string) error {
	for _, dir := range []string{CargoHome(sandboxDir), TargetDir(sandboxDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cargosafe: create sandbox directory: %w", err)
		}
	}
	return nil
}

// ProfileDigest returns the hex BLAKE3-256 digest of the serialized profile.
func ProfileDigest(text []byte) string {
	sum := blake3.Sum256(text)
	return hex.EncodeToString(sum[:])
}

// fileDigest returns the hex BLAKE3-256 digest of the file at path. It is a
// package-level variable so tests can override it.
var fileDigest = func(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteProfile serializes p into ProfileFileName under sandboxDir and returns
// the file path and the profile digest. The file is replaced atomically. It
// is not rewritten when the digest of the existing file matches, so an
// unchanged profile keeps its modification time.
func WriteProfile(sandboxDir string, p *seatbelt.Profile) (path, digest string, err error) {
	text := []byte(p.String())
	digest = ProfileDigest(text)
	path = filepath.Join(sandboxDir, ProfileFileName)

	existing, err := fileDigest(path)
	switch {
	case err == nil:
		if existing == digest {
			return path, digest, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", "", fmt.Errorf("cargosafe: read profile: %w", err)
	}

	if err := os.MkdirAll(sandboxDir, 0o755); err != nil {
		return "", "", fmt.Errorf("cargosafe: create sandbox directory: %w", err)
	}
	tmp, err := os.CreateTemp(sandboxDir, ProfileFileName+".*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("cargosafe: create profile: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("cargosafe: write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("cargosafe: write profile: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("cargosafe: write profile: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("cargosafe: rename profile: %w", err)
	}
	return path, digest, nil
}
