//go:build unix

package cargosafe

import (
	"errors"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// terminateWaitDelay is how long a cancelled child gets to exit after
// SIGTERM before it is killed and its pipes are closed.
const terminateWaitDelay = 5 * time.Second

// setupCancel makes context cancellation send SIGTERM to the child so cargo
// can clean up its lock files. The child stays in the caller's process group
// to keep receiving terminal signals such as Ctrl-C.
func setupCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		pid := cmd.Process.Pid
		// kill(-1) and kill(0) would hit far more than the child.
		if pid <= 1 {
			return os.ErrProcessDone
		}
		if err := unix.Kill(pid, unix.SIGTERM); err != nil {
			if errors.Is(err, unix.ESRCH) {
				return os.ErrProcessDone
			}
			return err
		}
		return nil
	}
	cmd.WaitDelay = terminateWaitDelay
}
