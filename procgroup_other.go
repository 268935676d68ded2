//go:build !unix

package cargosafe

import (
	"os/exec"
	"time"
)

const terminateWaitDelay = 5 * time.Second

func setupCancel(cmd *exec.Cmd) {
	cmd.WaitDelay = terminateWaitDelay
}
