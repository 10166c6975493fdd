// Package runner executes external tools. Probing uses Run, which blocks and
// collects output; session management uses Start, which spawns a detached
// child and hands back a Handle that is reaped in the background.
package runner

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"time"
)

// ErrProcessDone is returned by Terminate when the process already exited.
var ErrProcessDone = errors.New("process already finished")

// IsNotFound reports whether err means the executable does not exist, either
// because a bare name missed PATH or because an explicit path is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// Spawned reports whether res came from a process that actually ran.
func Spawned(res Result) bool { return res.ExitCode >= 0 }

// Cmd describes one invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string   // working directory; empty means inherit
	Env  []string // full environment; nil means inherit
}

// Result is the collected outcome of Run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs commands. Implementations must be safe for concurrent use.
type Executor interface {
	// Run executes cmd to completion. A non-nil error means the command could
	// not be started or exited non-zero; Result is filled as far as possible.
	Run(ctx context.Context, cmd Cmd) (Result, error)
	// Start spawns cmd without waiting for it. stdout and stderr may be nil.
	Start(cmd Cmd, stdout, stderr io.Writer) (Handle, error)
}

// Handle is a live child process.
type Handle interface {
	PID() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// Exited reports without blocking whether Done is closed.
	Exited() bool
	// ExitErr is the error returned by Wait; only meaningful after Done.
	ExitErr() error
	// Terminate asks the process tree to exit, escalating to a kill after grace.
	Terminate(grace time.Duration) error
}
