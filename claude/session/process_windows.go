//go:build windows

package session

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// signalGroup kills the process. Windows has no SIGTERM and no process
// groups reachable through os/exec, so both signals are a kill.
func signalGroup(cmd *exec.Cmd, _ groupSignal) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
