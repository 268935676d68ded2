package cargosafe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/zhangyunhao116/cargosafe/internal/envutil"
	"github.com/zhangyunhao116/cargosafe/platform"
)

// strippedEnvPrefixes name variables removed from the child environment.
// They let a caller inject libraries into every process of the build.
var strippedEnvPrefixes = []string{"DYLD_", "LD_"}

// Runner launches cargo under sandbox-exec.
type Runner struct {
	// Cargo is the tool to run. Defaults to "cargo".
	Cargo string

	// SandboxExec is the sandbox-exec binary. Defaults to
	// platform.SandboxExecPath.
	SandboxExec string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives debug and info records. Nil discards them.
	Logger *slog.Logger
}

// Command returns the command that runs cargo with args under the profile
// at profilePath. env is the base environment; CARGO_HOME and
// CARGO_TARGET_DIR are pointed into sandboxDir and loader injection
// variables are removed.
func (r *Runner) Command(ctx context.Context, profilePath, sandboxDir string, args, env []string) *exec.Cmd {
	sandboxExec := r.SandboxExec
	if sandboxExec == "" {
		sandboxExec = platform.SandboxExecPath
	}
	cargo := r.Cargo
	if cargo == "" {
		cargo = "cargo"
	}

	argv := make([]string, 0, len(args)+3)
	argv = append(argv, "-f", profilePath, cargo)
	argv = append(argv, args...)

	//nolint:gosec // binaries come from config; arguments are cargo's
	cmd := exec.CommandContext(ctx, sandboxExec, argv...)
	cmd.Env = childEnv(env, sandboxDir)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	setupCancel(cmd)
	return cmd
}

// Run executes cargo under the sandbox and waits for it. A non-zero exit is
// returned as an *ExitError carrying the child's status; a child killed by
// a signal yields status 1.
func (r *Runner) Run(ctx context.Context, profilePath, sandboxDir string, args, env []string) error {
	logger := loggerOrDiscard(r.Logger)
	cmd := r.Command(ctx, profilePath, sandboxDir, args, env)
	logger.Debug("launching sandboxed command",
		slog.String("path", cmd.Path),
		slog.Any("args", cmd.Args[1:]),
	)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err == nil {
		logger.Debug("sandboxed command finished", slog.Duration("duration", duration))
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("cargosafe: run %s: %w", cmd.Path, err)
	}
	code := exitErr.ExitCode()
	if code < 0 {
		// Terminated by a signal.
		logger.Info("sandboxed command killed",
			slog.String("state", exitErr.String()),
			slog.Duration("duration", duration))
		code = 1
	}
	logger.Debug("sandboxed command failed",
		slog.Int("code", code),
		slog.Duration("duration", duration))
	return &ExitError{Code: code}
}

// childEnv derives the sandboxed environment from env.
func childEnv(env []string, sandboxDir string) []string {
	for _, prefix := range strippedEnvPrefixes {
		env = envutil.WithoutPrefix(env, prefix)
	}
	return envutil.Merge(env, []string{
		"CARGO_HOME=" + CargoHome(sandboxDir),
		"CARGO_TARGET_DIR=" + TargetDir(sandboxDir),
	})
}
