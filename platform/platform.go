package platform

import (
	"fmt"
	"runtime"
)

// SandboxExecPath is the default location of the macOS sandbox-exec binary.
// This is a var (not const) so tests can point it elsewhere.
var SandboxExecPath = "/usr/bin/sandbox-exec"

// DependencyCheck holds the result of a dependency check.
type DependencyCheck struct {
	// Errors lists critical missing dependencies that prevent sandboxing.
	Errors []string

	// Warnings lists non-critical issues that may degrade functionality.
	Warnings []string
}

// OK returns true if no critical dependency errors were found.
func (d *DependencyCheck) OK() bool {
	return len(d.Errors) == 0
}

// Name returns the platform identifier.
func Name() string {
	if Supported() {
		return "darwin-seatbelt"
	}
	return "unsupported"
}

// Supported reports whether the host operating system provides Seatbelt.
func Supported() bool {
	return seatbeltSupported
}

// checkExecutable reports why path cannot be executed. It is a package-level
// variable so tests can override it.
var checkExecutable = executable

// Check inspects the host for everything needed to launch a command under
// sandboxExec. An empty sandboxExec means SandboxExecPath.
func Check(sandboxExec string) *DependencyCheck {
	check := &DependencyCheck{}
	if !Supported() {
		check.Errors = append(check.Errors,
			fmt.Sprintf("unsupported operating system %q: Seatbelt is only available on darwin", runtime.GOOS))
		return check
	}
	if sandboxExec == "" {
		sandboxExec = SandboxExecPath
	}
	if err := checkExecutable(sandboxExec); err != nil {
		check.Errors = append(check.Errors,
			fmt.Sprintf("sandbox-exec not usable at %s: %v", sandboxExec, err))
	}
	if sandboxExec != SandboxExecPath {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("using non-default sandbox-exec %s", sandboxExec))
	}
	return check
}
