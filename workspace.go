package cargosafe

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhangyunhao116/cargosafe/internal/pathutil"
)

// ManifestFileName marks the root of a cargo package or workspace.
const ManifestFileName = "Cargo.toml"

// FindWorkspace returns the directory cargo treats as the workspace root
// for start: the nearest manifest at or above start, or the first ancestor
// of it whose manifest declares a [workspace] table. Cargo.lock lives there.
// A package outside any workspace is its own root. Without any manifest the
// absolute form of start is returned so cargo can report the missing
// manifest itself.
func FindWorkspace(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("cargosafe: resolve workspace: %w", err)
	}
	pkg, ok := pathutil.FindUp(abs, ManifestFileName)
	if !ok {
		return abs, nil
	}
	for dir := pkg; ; {
		if declaresWorkspace(filepath.Join(dir, ManifestFileName)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if dir, ok = pathutil.FindUp(parent, ManifestFileName); !ok {
			break
		}
	}
	return pkg, nil
}

// declaresWorkspace reports whether the manifest at path has a [workspace]
// table or one of its subtables. Unreadable manifests count as packages.
func declaresWorkspace(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "[") || strings.HasPrefix(line, "[[") {
			continue
		}
		name, _, found := strings.Cut(line[1:], "]")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "workspace" || strings.HasPrefix(name, "workspace.") {
			return true
		}
	}
	return false
}
