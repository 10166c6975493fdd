// Package runnertest provides an in-memory runner.Executor for tests.
package runnertest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/loykin/flowcap/internal/runner"
)

// ErrNotFound is returned by Run for commands without a scripted response.
// It matches runner.IsNotFound.
var ErrNotFound = exec.ErrNotFound

type response struct {
	res runner.Result
	err error
}

// Executor replays scripted results keyed by "name arg1 arg2 ...".
type Executor struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []runner.Cmd
	starts    []runner.Cmd
	handles   []*Handle
	startErr  error
	nextPID   int
}

func New() *Executor {
	return &Executor{responses: make(map[string]response), nextPID: 4000}
}

// Key builds the lookup key for a command line.
func Key(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// Succeed scripts a zero exit with the given stdout.
func (e *Executor) Succeed(stdout string, name string, args ...string) {
	e.Respond(runner.Result{Stdout: stdout}, nil, name, args...)
}

// Fail scripts a non-zero exit.
func (e *Executor) Fail(name string, args ...string) {
	e.Respond(runner.Result{ExitCode: 1}, fmt.Errorf("exit status 1"), name, args...)
}

// Respond scripts an arbitrary outcome.
func (e *Executor) Respond(res runner.Result, err error, name string, args ...string) {
	e.mu.Lock()
	e.responses[Key(name, args...)] = response{res: res, err: err}
	e.mu.Unlock()
}

// FailStart makes every subsequent Start return err.
func (e *Executor) FailStart(err error) {
	e.mu.Lock()
	e.startErr = err
	e.mu.Unlock()
}

func (e *Executor) Run(_ context.Context, cmd runner.Cmd) (runner.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cmd)
	r, ok := e.responses[Key(cmd.Name, cmd.Args...)]
	if !ok {
		return runner.Result{ExitCode: -1}, fmt.Errorf("exec: %q: %w", cmd.Name, ErrNotFound)
	}
	return r.res, r.err
}

func (e *Executor) Start(cmd runner.Cmd, _, _ io.Writer) (runner.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts = append(e.starts, cmd)
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.nextPID++
	h := &Handle{pid: e.nextPID, done: make(chan struct{})}
	e.handles = append(e.handles, h)
	return h, nil
}

// Calls returns every Run invocation so far.
func (e *Executor) Calls() []runner.Cmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]runner.Cmd(nil), e.calls...)
}

// Starts returns every Start invocation so far.
func (e *Executor) Starts() []runner.Cmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]runner.Cmd(nil), e.starts...)
}

// Handles returns the handles created by Start, oldest first.
func (e *Executor) Handles() []*Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Handle(nil), e.handles...)
}

// Handle is a fake child controlled by the test.
type Handle struct {
	pid  int
	done chan struct{}
	once sync.Once

	mu         sync.Mutex
	exitErr    error
	terminated int
	termErr    error
}

func (h *Handle) PID() int              { return h.pid }
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Exit simulates the process ending on its own.
func (h *Handle) Exit(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()
		close(h.done)
	})
}

// FailTerminate makes Terminate return err without exiting.
func (h *Handle) FailTerminate(err error) {
	h.mu.Lock()
	h.termErr = err
	h.mu.Unlock()
}

// Terminated reports how many times Terminate was called.
func (h *Handle) Terminated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

func (h *Handle) Terminate(time.Duration) error {
	h.mu.Lock()
	h.terminated++
	termErr := h.termErr
	h.mu.Unlock()
	if termErr != nil {
		return termErr
	}
	if h.Exited() {
		return runner.ErrProcessDone
	}
	h.Exit(errors.New("signal: terminated"))
	return nil
}
