// cargo-safe runs cargo inside a macOS Seatbelt sandbox.
//
// Installed on PATH it works as a cargo subcommand:
//
//	cargo safe build --release
//	cargo safe --dump-profile
//
// Builds may read the toolchain and the workspace, write only Cargo.lock,
// the temp directory and a private staging directory, and reach the
// network only on ports 80 and 443.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/zhangyunhao116/cargosafe"
	"github.com/zhangyunhao116/cargosafe/internal/envutil"
)

// debugEnvVar enables debug logging when set to a non-empty value.
const debugEnvVar = "CARGO_SAFE_DEBUG"

func main() {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargo-safe: %v\n", err)
		os.Exit(1)
	}
	a := &app{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		env:     os.Environ(),
		dir:     dir,
		tempDir: os.TempDir(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	// Ctrl-C reaches cargo through the terminal; stay alive to report its
	// exit status. Ignoring the signal instead would be inherited by cargo.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	err = a.run(ctx, os.Args[1:])
	signal.Stop(interrupts)
	stop()
	if err != nil {
		var exitErr *cargosafe.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "cargo-safe: %v\n", err)
		}
		os.Exit(cargosafe.ExitCode(err))
	}
}

// app carries the process state a run depends on.
type app struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	env     []string
	dir     string
	tempDir string

	// runner overrides the sandbox launcher in tests.
	runner *cargosafe.Runner
	// monitorOpts configure the violation monitor in tests.
	monitorOpts []cargosafe.MonitorOption
}

func (a *app) run(ctx context.Context, args []string) error {
	opts, cargoArgs, fs, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(a.stdout, fs)
			return nil
		}
		return err
	}
	if opts.help {
		printHelp(a.stdout, fs)
		return nil
	}

	level := slog.LevelInfo
	if _, debug := envutil.LookupNonEmpty(a.env, debugEnvVar); debug || opts.verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(a.stderr, level)

	workspace, err := cargosafe.FindWorkspace(a.dir)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(opts, workspace)
	if err != nil {
		return err
	}
	sandboxDir := cfg.ResolveSandboxDir(workspace)
	logger.Debug("resolved workspace",
		slog.String("workspace", workspace),
		slog.String("sandbox_dir", sandboxDir))

	env := cargosafe.Environment{Vars: a.env, TempDir: a.tempDir}
	profile, err := cargosafe.BuildProfile(workspace, sandboxDir, env, cfg.ProfileOptions()...)
	if err != nil {
		return err
	}

	if opts.dumpProfile {
		_, err := profile.WriteTo(a.stdout)
		return err
	}

	if err := cargosafe.CheckPlatform(cfg.SandboxExec, logger); err != nil {
		return err
	}
	if err := cargosafe.PrepareSandboxDir(sandboxDir); err != nil {
		return err
	}
	profilePath, digest, err := cargosafe.WriteProfile(sandboxDir, profile)
	if err != nil {
		return err
	}
	logger.Debug("wrote sandbox profile",
		slog.String("path", profilePath),
		slog.String("blake3", digest),
		slog.Int("rules", len(profile.Rules)))

	return a.launch(ctx, logger, cfg, profilePath, sandboxDir, cargoArgs)
}

// loadConfig resolves the config file and applies flag overrides.
func (a *app) loadConfig(opts *options, workspace string) (*cargosafe.Config, error) {
	path, err := cargosafe.FindConfig(opts.configPath, workspace, a.env)
	if err != nil {
		return nil, err
	}
	cfg := cargosafe.DefaultConfig()
	if path != "" {
		if cfg, err = cargosafe.LoadConfig(path, workspace, a.env); err != nil {
			return nil, err
		}
	}
	if opts.sandboxDir != "" {
		cfg.SandboxDir = opts.sandboxDir
	}
	if opts.reportViolations {
		cfg.ReportViolations = true
	}
	return cfg, cfg.Validate()
}

// launch runs cargo under the sandbox, collecting denials when requested.
func (a *app) launch(ctx context.Context, logger *slog.Logger, cfg *cargosafe.Config, profilePath, sandboxDir string, cargoArgs []string) error {
	runner := a.runner
	if runner == nil {
		runner = &cargosafe.Runner{}
	}
	runner.Cargo = cfg.Cargo
	runner.SandboxExec = cfg.SandboxExec
	runner.Stdin, runner.Stdout, runner.Stderr = a.stdin, a.stdout, a.stderr
	runner.Logger = logger

	var monitor *cargosafe.ViolationMonitor
	if cfg.ReportViolations {
		monitor = cargosafe.NewViolationMonitor(0, a.monitorOpts...)
		if err := monitor.Start(ctx); err != nil {
			logger.Warn("violation reporting disabled", slog.String("error", err.Error()))
			monitor = nil
		}
	}

	err := runner.Run(ctx, profilePath, sandboxDir, cargoArgs, a.env)

	if monitor != nil {
		if stopErr := monitor.Stop(); stopErr != nil {
			logger.Debug("stopping violation monitor", slog.String("error", stopErr.Error()))
		}
		reportViolations(logger, monitor)
	}
	return err
}

func reportViolations(logger *slog.Logger, monitor *cargosafe.ViolationMonitor) {
	for _, v := range monitor.Violations() {
		logger.Warn("sandbox denied operation",
			slog.String("process", v.Process),
			slog.Int("pid", v.PID),
			slog.String("operation", v.Operation),
			slog.String("path", v.Path))
	}
	if n := monitor.Dropped(); n > 0 {
		logger.Warn("older violations not shown", slog.Int("count", n))
	}
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `cargo-safe runs cargo inside a macOS Seatbelt sandbox.

Usage:
  cargo safe [cargo-safe flags] <cargo arguments>
  cargo-safe [cargo-safe flags] <cargo arguments>

Arguments that are not cargo-safe flags are passed to cargo. Everything
from the first "--" on is passed to cargo unchanged.

Flags:
%s`, fs.FlagUsages())
}
