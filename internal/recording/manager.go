package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/deps"
	"github.com/loykin/flowcap/internal/history"
	"github.com/loykin/flowcap/internal/locator"
	"github.com/loykin/flowcap/internal/logger"
	"github.com/loykin/flowcap/internal/metrics"
	"github.com/loykin/flowcap/internal/project"
	"github.com/loykin/flowcap/internal/runner"
	"github.com/loykin/flowcap/internal/store"
)

// ErrSessionNotFound is returned by Stop for ids the registry does not hold.
// The text reaches the UI verbatim, so it keeps the UI's capitalisation.
var ErrSessionNotFound = errors.New("Recording session not found")

// Defaults for Config fields left empty.
const (
	DefaultPackageManager = "pnpm"
	DefaultRunner         = "tsx"
	DefaultEntry          = "src/cli.ts"
	DefaultOutputDir      = "recordings"
	DefaultLogDir         = "logs"
	DefaultStopGrace      = 3 * time.Second
)

// Config describes how the recorder is invoked. Relative directories are
// resolved against the project root.
type Config struct {
	PackageManager string        `mapstructure:"package_manager"`
	Runner         string        `mapstructure:"runner"`
	Entry          string        `mapstructure:"entry"`
	OutputDir      string        `mapstructure:"output_dir"`
	StopGrace      time.Duration `mapstructure:"stop_grace"`
	// Log.Dir receives <session>.stdout.log and <session>.stderr.log; empty
	// discards recorder output.
	Log logger.FileConfig `mapstructure:"log"`
}

func (c Config) withDefaults() Config {
	if c.PackageManager == "" {
		c.PackageManager = DefaultPackageManager
	}
	if c.Runner == "" {
		c.Runner = DefaultRunner
	}
	if c.Entry == "" {
		c.Entry = DefaultEntry
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
	return c
}

// Manager starts, observes and stops recorder sessions.
type Manager struct {
	loc *locator.Locator
	cwd string
	cfg Config
	reg *Registry
	now func() time.Time

	mu    sync.RWMutex
	st    store.Store
	sinks []history.Sink
}

// NewManager builds a manager resolving the project root from cwd.
func NewManager(loc *locator.Locator, cwd string, cfg Config) *Manager {
	return &Manager{
		loc: loc,
		cwd: cwd,
		cfg: cfg.withDefaults(),
		reg: NewRegistry(),
		now: time.Now,
	}
}

// SetStore configures where session history is persisted.
func (m *Manager) SetStore(s store.Store) {
	m.mu.Lock()
	m.st = s
	m.mu.Unlock()
}

// SetHistorySinks configures external event sinks. No sinks clears the list.
func (m *Manager) SetHistorySinks(sinks ...history.Sink) {
	m.mu.Lock()
	m.sinks = append([]history.Sink(nil), sinks...)
	m.mu.Unlock()
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Registry exposes the tracked sessions.
func (m *Manager) Registry() *Registry { return m.reg }

// ProjectRoot is the directory the recorder runs in.
func (m *Manager) ProjectRoot() string {
	return project.ResolveRoot(m.loc.Fs(), m.cwd)
}

// OutputDir is the absolute recordings directory.
func (m *Manager) OutputDir() string {
	return m.resolve(m.ProjectRoot(), m.cfg.OutputDir)
}

func (m *Manager) resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return m.loc.Platform().Join(root, dir)
}

// Start spawns a recorder for opts. It never fails: problems are reported
// through a session with status failed, and such sessions are not tracked.
func (m *Manager) Start(ctx context.Context, opts Options) Session {
	id := uuid.NewString()
	started := m.now()
	sess := Session{ID: id, Status: StatusPreparing, StartTime: strconv.FormatInt(started.Unix(), 10)}
	fail := func(msg string) Session {
		slog.Warn("Recording failed to start", "session", id, "error", msg)
		metrics.IncSessionFailure()
		sess.Status = StatusFailed
		sess.Error = &msg
		return sess
	}

	if err := opts.Validate(); err != nil {
		return fail(err.Error())
	}

	root := m.ProjectRoot()
	outDir := m.resolve(root, m.cfg.OutputDir)
	if err := m.loc.Fs().MkdirAll(outDir, 0o755); err != nil {
		return fail(fmt.Sprintf("Failed to create recordings directory: %v", err))
	}
	outputPath := m.loc.Platform().Join(outDir, OutputBaseName(opts.FigmaURL, started))
	args := BuildArgs(m.cfg.Runner, m.cfg.Entry, opts)

	pm := m.loc.Locate(ctx, m.cfg.PackageManager)
	stdout, stderr := m.outputWriters(root, id)
	slog.Info("Starting recorder", "session", id, "cmd", pm, "args", strings.Join(args, " "), "dir", root)
	h, err := m.loc.Executor().Start(runner.Cmd{
		Name: pm,
		Args: args,
		Dir:  root,
		Env:  m.loc.Env().Merge(nil),
	}, writerOrNil(stdout), writerOrNil(stderr))
	if err != nil {
		closeAll(stdout, stderr)
		if runner.IsNotFound(err) && m.cfg.PackageManager == DefaultPackageManager {
			return fail(deps.ErrPnpmNotFound.Error())
		}
		return fail(fmt.Sprintf("Failed to start recording process: %v", err))
	}

	e := &Entry{
		Record: store.Record{
			SessionID:  id,
			URL:        opts.FigmaURL,
			Mode:       opts.RecordingMode,
			Format:     opts.Format,
			OutputPath: outputPath,
			PID:        h.PID(),
			StartedAt:  started.UTC(),
			Status:     string(StatusRecording),
		},
		Handle:  h,
		closers: closers(stdout, stderr),
	}
	m.reg.Add(id, e)
	metrics.IncSessionStart()
	metrics.SetActiveSessions(m.reg.Len())
	slog.Info("Recorder started", "session", id, "pid", h.PID(), "output", outputPath)
	m.recordStart(e.Record)
	go m.watch(id, e)

	sess.Status = StatusRecording
	sess.OutputPath = &outputPath
	return sess
}

// Status reports a session without blocking. A live process is recording;
// one that exited is pruned and reported completed or failed by exit code.
// Unknown ids report completed.
func (m *Manager) Status(_ context.Context, id string) (Session, error) {
	e, ok := m.reg.Get(id)
	if !ok {
		return Session{ID: id, Status: StatusCompleted}, nil
	}
	rec := e.Record
	sess := Session{
		ID:         id,
		Status:     StatusRecording,
		StartTime:  strconv.FormatInt(rec.StartedAt.Unix(), 10),
		OutputPath: &rec.OutputPath,
	}
	if !e.Handle.Exited() {
		return sess, nil
	}
	if m.reg.RemoveIf(id, e) {
		metrics.SetActiveSessions(m.reg.Len())
	}
	d := m.now().Sub(rec.StartedAt).Seconds()
	sess.Duration = &d
	sess.Status = StatusCompleted
	if err := e.Handle.ExitErr(); err != nil {
		msg := err.Error()
		sess.Status = StatusFailed
		sess.Error = &msg
	}
	return sess, nil
}

// Stop untracks id and terminates its process tree.
func (m *Manager) Stop(_ context.Context, id string) error {
	e, ok := m.reg.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	claimed := e.claim()
	metrics.SetActiveSessions(m.reg.Len())
	err := e.Handle.Terminate(m.cfg.StopGrace)
	e.closeOutput()
	if err != nil {
		if claimed {
			m.recordStop(e.Record, history.EventStop, StatusFailed, err)
		}
		return fmt.Errorf("Failed to stop recording process: %w", err)
	}
	metrics.IncSessionStop()
	slog.Info("Recording stopped", "session", id, "pid", e.Handle.PID())
	if claimed {
		m.recordStop(e.Record, history.EventStop, StatusCompleted, nil)
	}
	return nil
}

// List returns the names in the recordings directory, or none when it cannot
// be read.
func (m *Manager) List() []string {
	names := []string{}
	infos, err := afero.ReadDir(m.loc.Fs(), m.OutputDir())
	if err != nil {
		slog.Debug("Recordings directory unreadable", "dir", m.OutputDir(), "error", err)
		return names
	}
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

// OpenFolder creates the recordings directory and shows it in the OS file manager.
func (m *Manager) OpenFolder(_ context.Context) error {
	dir := m.OutputDir()
	if err := m.loc.Fs().MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("Failed to create recordings directory: %w", err)
	}
	name, args := m.loc.Platform().OpenFolderCommand(dir)
	if _, err := m.loc.Executor().Start(runner.Cmd{Name: name, Args: args}, nil, nil); err != nil {
		return fmt.Errorf("Failed to open folder: %w", err)
	}
	return nil
}

// Close terminates every tracked session.
func (m *Manager) Close(ctx context.Context) error {
	all, err := m.reg.Shutdown(ctx, m.cfg.StopGrace)
	metrics.SetActiveSessions(m.reg.Len())
	for id, e := range all {
		slog.Info("Recording terminated on shutdown", "session", id)
		metrics.IncSessionStop()
		m.recordStop(e.Record, history.EventStop, StatusCompleted, nil)
	}
	return err
}

// watch records a recorder that exits on its own. The entry stays in the
// registry until Status observes the exit.
func (m *Manager) watch(id string, e *Entry) {
	<-e.Handle.Done()
	e.closeOutput()
	if !e.claim() {
		return
	}
	status := StatusCompleted
	exitErr := e.Handle.ExitErr()
	if exitErr != nil {
		status = StatusFailed
	}
	slog.Info("Recorder exited", "session", id, "status", status, "error", exitErr)
	metrics.IncSessionExit(string(status))
	m.recordStop(e.Record, history.EventExit, status, exitErr)
}

func (m *Manager) backends() (store.Store, []history.Sink) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st, append([]history.Sink(nil), m.sinks...)
}

func (m *Manager) recordStart(rec store.Record) {
	st, sinks := m.backends()
	ctx := context.Background()
	if st != nil {
		if err := st.RecordStart(ctx, rec); err != nil {
			slog.Warn("Failed to persist session start", "session", rec.SessionID, "error", err)
		}
	}
	evt := history.Event{Type: history.EventStart, OccurredAt: m.now().UTC(), Record: rec}
	for _, s := range sinks {
		history.Emit(ctx, s, evt)
	}
}

func (m *Manager) recordStop(rec store.Record, typ history.EventType, status Status, exitErr error) {
	st, sinks := m.backends()
	ctx := context.Background()
	stopped := m.now().UTC()
	if st != nil {
		if err := st.RecordStop(ctx, rec.SessionID, stopped, string(status), exitErr); err != nil {
			slog.Warn("Failed to persist session stop", "session", rec.SessionID, "error", err)
		}
	}
	rec.StoppedAt = sql.NullTime{Time: stopped, Valid: true}
	rec.Status = string(status)
	rec.Error = store.ErrString(exitErr)
	evt := history.Event{Type: typ, OccurredAt: stopped, Record: rec}
	for _, s := range sinks {
		history.Emit(ctx, s, evt)
	}
}

func (m *Manager) outputWriters(root, id string) (io.WriteCloser, io.WriteCloser) {
	fc := m.cfg.Log
	if fc.Dir == "" {
		return nil, nil
	}
	fc.Dir = m.resolve(root, fc.Dir)
	stdout, stderr, err := fc.SessionWriters(id)
	if err != nil {
		slog.Warn("Recorder output not captured", "session", id, "error", err)
		return nil, nil
	}
	return stdout, stderr
}

func writerOrNil(w io.WriteCloser) io.Writer {
	if w == nil {
		return nil
	}
	return w
}

func closers(ws ...io.WriteCloser) []io.Closer {
	var out []io.Closer
	for _, w := range ws {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

func closeAll(ws ...io.WriteCloser) {
	for _, c := range closers(ws...) {
		_ = c.Close()
	}
}
