//go:build !windows

package runner

import (
	"errors"
	"os"
	"syscall"
)

// signalTerm sends SIGTERM to the process group led by pid.
func signalTerm(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// signalKill sends SIGKILL to the process group led by pid.
func signalKill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
