//go:build !windows

package session

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in its own process group so MCP servers
// and other descendants can be signalled with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig groupSignal) error {
	if cmd.Process == nil {
		return nil
	}
	s := syscall.SIGTERM
	if sig == sigKill {
		s = syscall.SIGKILL
	}
	err := syscall.Kill(-cmd.Process.Pid, s)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
