//go:build unix

package cargosafe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// fakeSandboxExec writes a stand-in for sandbox-exec that drops "-f
// <profile>" and runs the remaining arguments.
func fakeSandboxExec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sandbox-exec")
	script := "#!/bin/sh\n[ \"$1\" = -f ] || exit 90\n[ -n \"$2\" ] || exit 91\nshift 2\nexec \"$@\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunnerCommand(t *testing.T) {
	r := &Runner{Cargo: "/opt/cargo", SandboxExec: "/usr/bin/sandbox-exec"}
	env := []string{
		"PATH=/usr/bin",
		"DYLD_INSERT_LIBRARIES=/evil.dylib",
		"CARGO_HOME=/home/u/.cargo",
		"LD_PRELOAD=/evil.so",
		"HOME=/home/u",
	}
	cmd := r.Command(context.Background(), "/ws/sb/cargo-safe.sb", "/ws/sb", []string{"build", "--release"}, env)

	wantArgs := []string{"/usr/bin/sandbox-exec", "-f", "/ws/sb/cargo-safe.sb", "/opt/cargo", "build", "--release"}
	if !slices.Equal(cmd.Args, wantArgs) {
		t.Errorf("Args = %q, want %q", cmd.Args, wantArgs)
	}
	wantEnv := []string{
		"PATH=/usr/bin",
		"CARGO_HOME=/ws/sb/cargo",
		"HOME=/home/u",
		"CARGO_TARGET_DIR=/ws/sb/target",
	}
	if !slices.Equal(cmd.Env, wantEnv) {
		t.Errorf("Env = %q, want %q", cmd.Env, wantEnv)
	}
	if cmd.Cancel == nil || cmd.WaitDelay != terminateWaitDelay {
		t.Error("Command() should install cancellation handling")
	}
}

func TestRunnerCommandDefaults(t *testing.T) {
	r := &Runner{}
	cmd := r.Command(context.Background(), "/p.sb", "/sb", nil, nil)
	if cmd.Args[0] != "/usr/bin/sandbox-exec" {
		t.Errorf("sandbox-exec = %q, want default", cmd.Args[0])
	}
	if cmd.Args[3] != "cargo" {
		t.Errorf("cargo = %q, want \"cargo\"", cmd.Args[3])
	}
	if len(cmd.Args) != 4 {
		t.Errorf("Args = %q, want no cargo arguments", cmd.Args)
	}
}

func TestRunnerRunExitCodes(t *testing.T) {
	sandboxExec := fakeSandboxExec(t)
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"success", "exit 0", 0},
		{"failure", "exit 3", 3},
		{"high status", "exit 101", 101},
		{"signal", "kill -9 $$", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Runner{Cargo: "/bin/sh", SandboxExec: sandboxExec}
			err := r.Run(context.Background(), "/p.sb", t.TempDir(), []string{"-c", tt.script}, os.Environ())
			if got := ExitCode(err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.want)
			}
			if tt.want != 0 {
				var exitErr *ExitError
				if !errors.As(err, &exitErr) {
					t.Errorf("error %v is not an *ExitError", err)
				}
			}
		})
	}
}

func TestRunnerRunEnvironment(t *testing.T) {
	sb := t.TempDir()
	var stdout bytes.Buffer
	r := &Runner{Cargo: "/bin/sh", SandboxExec: fakeSandboxExec(t), Stdout: &stdout}
	env := append(os.Environ(), "DYLD_LIBRARY_PATH=/x", "LD_PRELOAD=/y")
	script := `printf '%s\n' "$CARGO_HOME" "$CARGO_TARGET_DIR" "${DYLD_LIBRARY_PATH-unset}" "${LD_PRELOAD-unset}"`

	if err := r.Run(context.Background(), "/p.sb", sb, []string{"-c", script}, env); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := strings.Join([]string{CargoHome(sb), TargetDir(sb), "unset", "unset"}, "\n") + "\n"
	if stdout.String() != want {
		t.Errorf("child saw\n%s\nwant\n%s", stdout.String(), want)
	}
}

func TestRunnerRunStdin(t *testing.T) {
	var stdout bytes.Buffer
	r := &Runner{
		Cargo:       "/bin/sh",
		SandboxExec: fakeSandboxExec(t),
		Stdin:       strings.NewReader("hello\n"),
		Stdout:      &stdout,
	}
	if err := r.Run(context.Background(), "/p.sb", t.TempDir(), []string{"-c", "cat"}, os.Environ()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stdout.String() != "hello\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunnerRunMissingBinary(t *testing.T) {
	r := &Runner{SandboxExec: filepath.Join(t.TempDir(), "missing")}
	err := r.Run(context.Background(), "/p.sb", t.TempDir(), nil, nil)
	if err == nil {
		t.Fatal("Run() should fail when sandbox-exec is missing")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("start failure reported as exit status: %v", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode() = %d, want 1", ExitCode(err))
	}
}

func TestRunnerRunCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	r := &Runner{Cargo: "/bin/sh", SandboxExec: fakeSandboxExec(t)}

	start := time.Now()
	err := r.Run(ctx, "/p.sb", t.TempDir(), []string{"-c", "exec sleep 30"}, os.Environ())
	if ExitCode(err) == 0 {
		t.Fatalf("Run() = %v, want failure after cancellation", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}
