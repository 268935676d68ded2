package cargosafe

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTempDir, "cargosafe: cannot resolve temp directory"},
		{ErrUnsupportedPlatform, "cargosafe: unsupported platform"},
		{ErrDependencyMissing, "cargosafe: required dependency missing"},
		{ErrConfigInvalid, "cargosafe: invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIdentity(t *testing.T) {
	allErrors := []error{
		ErrTempDir,
		ErrUnsupportedPlatform,
		ErrDependencyMissing,
		ErrConfigInvalid,
	}

	for i, a := range allErrors {
		for j, b := range allErrors {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors.Is(%v, %v) should be false", a, b)
			}
		}
		wrapped := fmt.Errorf("context: %w", a)
		if !errors.Is(wrapped, a) {
			t.Errorf("errors.Is(wrapped, %v) should be true", a)
		}
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 101}
	if got, want := err.Error(), "cargosafe: sandboxed command exited with status 101"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"exit error", &ExitError{Code: 3}, 3},
		{"wrapped exit error", fmt.Errorf("run: %w", &ExitError{Code: 42}), 42},
		{"other error", ErrConfigInvalid, 1},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
