package cargosafe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhangyunhao116/cargosafe/internal/envutil"
	"github.com/zhangyunhao116/cargosafe/internal/pathutil"
	"github.com/zhangyunhao116/cargosafe/platform"
)

const (
	// ConfigFileName is the per-workspace config file looked up in the
	// workspace root.
	ConfigFileName = ".cargo-safe.yaml"

	// ConfigEnvVar names the environment variable holding a config path.
	ConfigEnvVar = "CARGO_SAFE_CONFIG"

	// DefaultSandboxDir is the staging directory, relative to the workspace.
	DefaultSandboxDir = "target/cargo-safe"
)

// Config holds the settings of a cargo-safe run. Zero fields fall back to
// DefaultConfig values when loaded from a file.
type Config struct {
	// SandboxDir is the staging directory for CARGO_HOME, CARGO_TARGET_DIR
	// and the profile file. Relative paths are resolved against the
	// workspace root.
	SandboxDir string `yaml:"sandbox_dir"`

	// Cargo is the tool launched inside the sandbox.
	Cargo string `yaml:"cargo"`

	// SandboxExec is the path of the sandbox-exec binary.
	SandboxExec string `yaml:"sandbox_exec"`

	// ExtraRead lists absolute directories the build may additionally read.
	ExtraRead []string `yaml:"extra_read,omitempty"`

	// ExtraWrite lists absolute directories the build may additionally write.
	ExtraWrite []string `yaml:"extra_write,omitempty"`

	// ReportViolations logs sandbox denials observed while cargo runs.
	ReportViolations bool `yaml:"report_violations"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		SandboxDir:  DefaultSandboxDir,
		Cargo:       "cargo",
		SandboxExec: platform.SandboxExecPath,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig. ${HOME} and
// ${WORKSPACE} in path fields are expanded using vars and workspace. Unknown
// keys are rejected. The result is validated.
func LoadConfig(path, workspace string, vars []string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cargosafe: read config: %w", err)
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}
	if err := cfg.expand(workspace, vars); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	// An explicit empty value means "use the default".
	def := DefaultConfig()
	if cfg.SandboxDir == "" {
		cfg.SandboxDir = def.SandboxDir
	}
	if cfg.Cargo == "" {
		cfg.Cargo = def.Cargo
	}
	if cfg.SandboxExec == "" {
		cfg.SandboxExec = def.SandboxExec
	}
	return cfg, nil
}

// expand substitutes ${HOME} and ${WORKSPACE} in path fields. It returns an
// error naming every reference that has no value: expanding it to "" would
// turn "${HOME}/.cache" into a grant under the filesystem root.
func (c *Config) expand(workspace string, vars []string) error {
	home, _ := envutil.LookupNonEmpty(vars, "HOME")
	var unresolved []string
	seen := make(map[string]bool)
	mapping := func(name string) string {
		var value string
		switch name {
		case "HOME":
			value = home
		case "WORKSPACE":
			value = workspace
		default:
			return "${" + name + "}"
		}
		if value == "" && !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, "${"+name+"}")
		}
		return value
	}
	c.SandboxDir = os.Expand(c.SandboxDir, mapping)
	c.Cargo = os.Expand(c.Cargo, mapping)
	c.SandboxExec = os.Expand(c.SandboxExec, mapping)
	for i := range c.ExtraRead {
		c.ExtraRead[i] = os.Expand(c.ExtraRead[i], mapping)
	}
	for i := range c.ExtraWrite {
		c.ExtraWrite[i] = os.Expand(c.ExtraWrite[i], mapping)
	}
	if len(unresolved) > 0 {
		return fmt.Errorf("%w: %s not set", ErrConfigInvalid, strings.Join(unresolved, ", "))
	}
	return nil
}

// Validate checks the configuration for errors. It returns nil if valid, or
// an error wrapping ErrConfigInvalid listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.SandboxDir == "" {
		errs = append(errs, "sandbox_dir: must not be empty")
	} else if !isPolicyText(c.SandboxDir) {
		errs = append(errs, "sandbox_dir: must be valid UTF-8 without null bytes")
	} else if strings.ContainsAny(c.SandboxDir, "\"\n") {
		errs = append(errs, "sandbox_dir: must not contain quotes or newlines")
	}
	if c.Cargo == "" {
		errs = append(errs, "cargo: must not be empty")
	}
	if c.SandboxExec == "" {
		errs = append(errs, "sandbox_exec: must not be empty")
	} else if !filepath.IsAbs(c.SandboxExec) {
		errs = append(errs, fmt.Sprintf("sandbox_exec: %q must be an absolute path", c.SandboxExec))
	}
	errs = validatePaths("extra_read", c.ExtraRead, errs)
	errs = validatePaths("extra_write", c.ExtraWrite, errs)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// validatePaths appends an error for every entry of paths that cannot be
// placed in a prefix filter.
func validatePaths(field string, paths []string, errs []string) []string {
	for i, p := range paths {
		switch {
		case p == "":
			errs = append(errs, fmt.Sprintf("%s[%d]: must not be empty", field, i))
		case !isPolicyText(p):
			errs = append(errs, fmt.Sprintf("%s[%d]: must be valid UTF-8 without null bytes", field, i))
		case strings.ContainsAny(p, "\"\n"):
			errs = append(errs, fmt.Sprintf("%s[%d]: must not contain quotes or newlines", field, i))
		case !filepath.IsAbs(p):
			errs = append(errs, fmt.Sprintf("%s[%d]: %q must be an absolute path", field, i, p))
		case p == "/":
			errs = append(errs, fmt.Sprintf("%s[%d]: granting the filesystem root is not allowed", field, i))
		}
	}
	return errs
}

func isPolicyText(p string) bool {
	_, ok := pathutil.AsText(p)
	return ok
}

// ResolveSandboxDir returns the absolute staging directory for workspace.
func (c *Config) ResolveSandboxDir(workspace string) string {
	if filepath.IsAbs(c.SandboxDir) {
		return filepath.Clean(c.SandboxDir)
	}
	return filepath.Join(workspace, c.SandboxDir)
}

// ProfileOptions returns the BuildProfile options implied by c.
func (c *Config) ProfileOptions() []Option {
	var opts []Option
	if len(c.ExtraRead) > 0 {
		opts = append(opts, WithExtraReadPaths(c.ExtraRead...))
	}
	if len(c.ExtraWrite) > 0 {
		opts = append(opts, WithExtraWritePaths(c.ExtraWrite...))
	}
	return opts
}

// FindConfig returns the config file to load. An explicit path (from a
// flag) wins, then the ConfigEnvVar variable in vars, then ConfigFileName in
// the workspace root. Explicit and environment paths must exist; a missing
// workspace file yields "" and no error.
func FindConfig(explicit, workspace string, vars []string) (string, error) {
	if explicit != "" {
		return requireFile(explicit)
	}
	if p, ok := envutil.LookupNonEmpty(vars, ConfigEnvVar); ok {
		return requireFile(p)
	}
	p := filepath.Join(workspace, ConfigFileName)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("cargosafe: stat config: %w", err)
	}
	return p, nil
}

func requireFile(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("cargosafe: config file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: config path %s is a directory", ErrConfigInvalid, p)
	}
	return p, nil
}
