package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// OS runs commands on the host.
type OS struct{}

func NewOS() OS { return OS{} }

func (OS) Run(ctx context.Context, c Cmd) (Result, error) {
	// ok: intentional execution of probed tools
	// #nosec G204
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res, err
}

func (OS) Start(c Cmd, stdout, stderr io.Writer) (Handle, error) {
	// #nosec G204
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	// nil writers are connected to the null device by os/exec.
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := &osHandle{cmd: cmd, pid: cmd.Process.Pid, done: make(chan struct{})}
	go h.wait()
	return h, nil
}

type osHandle struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

// wait is the single waiter for cmd; everything else observes done.
func (h *osHandle) wait() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
	close(h.done)
}

func (h *osHandle) PID() int              { return h.pid }
func (h *osHandle) Done() <-chan struct{} { return h.done }

func (h *osHandle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *osHandle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

func (h *osHandle) Terminate(grace time.Duration) error {
	if h.Exited() {
		return ErrProcessDone
	}
	// Collect descendants first; once the root dies they are re-parented.
	children := descendants(h.pid)
	if err := signalTerm(h.pid); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrProcessDone
		}
		return err
	}
	select {
	case <-h.done:
	case <-time.After(grace):
		_ = signalKill(h.pid)
		select {
		case <-h.done:
		case <-time.After(200 * time.Millisecond):
			// best-effort
		}
	}
	killAll(children)
	return nil
}
