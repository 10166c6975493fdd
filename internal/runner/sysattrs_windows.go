//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in a new process group so console
// control events aimed at flowcap do not reach it.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
