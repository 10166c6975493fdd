//go:build windows

package runner

import "os"

// Windows has no SIGTERM; both steps kill the process.
func signalTerm(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func signalKill(pid int) error { return signalTerm(pid) }
