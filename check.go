package cargosafe

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zhangyunhao116/cargosafe/platform"
)

// checkPlatformFn is the host check used by CheckPlatform. Tests replace it.
var checkPlatformFn = platform.Check

// CheckPlatform reports whether cargo can be launched under sandboxExec on
// this host. It returns an error wrapping ErrUnsupportedPlatform when the
// OS has no Seatbelt and ErrDependencyMissing when sandbox-exec is unusable.
// Warnings are logged to logger, which may be nil.
func CheckPlatform(sandboxExec string, logger *slog.Logger) error {
	if !platform.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform.Name())
	}
	check := checkPlatformFn(sandboxExec)
	for _, w := range check.Warnings {
		loggerOrDiscard(logger).Warn("platform check", slog.String("warning", w))
	}
	if !check.OK() {
		return fmt.Errorf("%w: %s", ErrDependencyMissing, strings.Join(check.Errors, "; "))
	}
	return nil
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
