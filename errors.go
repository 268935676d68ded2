package cargosafe

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the cargosafe package.
var (
	// ErrTempDir indicates the OS temp directory could not be canonicalized.
	// Profile assembly stops and no profile is produced.
	ErrTempDir = errors.New("cargosafe: cannot resolve temp directory")

	// ErrUnsupportedPlatform indicates the host has no Seatbelt sandbox.
	ErrUnsupportedPlatform = errors.New("cargosafe: unsupported platform")

	// ErrDependencyMissing indicates sandbox-exec is not available.
	ErrDependencyMissing = errors.New("cargosafe: required dependency missing")

	// ErrConfigInvalid indicates the configuration failed validation.
	ErrConfigInvalid = errors.New("cargosafe: invalid configuration")
)

// ExitError reports that the sandboxed tool ran and exited unsuccessfully.
// Code is the status this process should exit with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("cargosafe: sandboxed command exited with status %d", e.Code)
}

// ExitCode returns the exit code carried by err: 0 for nil, the child's code
// for an *ExitError, and 1 for any other error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
