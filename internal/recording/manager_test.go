package recording

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/flowcap/internal/env"
	"github.com/loykin/flowcap/internal/history"
	"github.com/loykin/flowcap/internal/locator"
	"github.com/loykin/flowcap/internal/platform"
	"github.com/loykin/flowcap/internal/runner"
	"github.com/loykin/flowcap/internal/runner/runnertest"
	"github.com/loykin/flowcap/internal/store"
	"github.com/loykin/flowcap/internal/store/sqlite"
)

const projectDir = "/work/figma-flow-capture"

type fixture struct {
	plat platform.Platform
	fs   afero.Fs
	ex   *runnertest.Executor
	m    *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{plat: platform.For("linux"), fs: afero.NewMemMapFs(), ex: runnertest.New()}
	require.NoError(t, f.fs.MkdirAll(projectDir+"/src", 0o755))
	require.NoError(t, afero.WriteFile(f.fs, projectDir+"/package.json", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(f.fs, "/usr/bin/pnpm", []byte("#!"), 0o755))
	loc := locator.New(f.plat, env.FromMap(map[string]string{"PATH": "/usr/bin:/bin", "HOME": "/home/me"}), f.fs, f.ex)
	f.m = NewManager(loc, projectDir+"/gui", Config{})
	f.m.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	t.Cleanup(func() { _ = f.m.Close(context.Background()) })
	return f
}

func validOptions() Options {
	d := uint32(10)
	return Options{
		FigmaURL:      "https://example.com/file/abc?query=1",
		RecordingMode: ModeVideo,
		Format:        "mp4",
		Duration:      &d,
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (s *captureSink) Send(_ context.Context, e history.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) types() []history.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []history.EventType
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.m.Start(ctx, validOptions())
	require.Equal(t, StatusRecording, s.Status, "error: %v", s.Error)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "1700000000", s.StartTime)
	assert.Nil(t, s.Error)
	require.NotNil(t, s.OutputPath)
	assert.Equal(t, projectDir+"/recordings/example.com-1700000000000", *s.OutputPath)
	assert.Equal(t, 1, f.m.Registry().Len())

	starts := f.ex.Starts()
	require.Len(t, starts, 1)
	assert.Equal(t, "/usr/bin/pnpm", starts[0].Name)
	assert.Equal(t, projectDir, starts[0].Dir)
	assert.Equal(t, []string{
		"tsx", "src/cli.ts",
		"--url", "https://example.com/file/abc?query=1",
		"--mode", "video",
		"--format", "mp4",
		"--duration", "10",
		"--wait-for-canvas", "false",
	}, starts[0].Args)
	isDir, err := afero.IsDir(f.fs, projectDir+"/recordings")
	require.NoError(t, err)
	assert.True(t, isDir)

	st, err := f.m.Status(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRecording, st.Status)

	require.NoError(t, f.m.Stop(ctx, s.ID))
	assert.Equal(t, 0, f.m.Registry().Len())
	assert.Equal(t, 1, f.ex.Handles()[0].Terminated())

	st, err = f.m.Status(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
}

func TestStopUnknownSession(t *testing.T) {
	f := newFixture(t)
	err := f.m.Stop(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, "Recording session not found: nope", err.Error())
}

func TestStatusUnknownReportsCompleted(t *testing.T) {
	f := newFixture(t)
	st, err := f.m.Status(context.Background(), "never-started")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, "never-started", st.ID)
}

func TestStartSpawnFailure(t *testing.T) {
	f := newFixture(t)
	f.ex.FailStart(errors.New("permission denied"))

	s := f.m.Start(context.Background(), validOptions())
	assert.Equal(t, StatusFailed, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, "Failed to start recording process: permission denied", *s.Error)
	assert.Nil(t, s.OutputPath)
	assert.Equal(t, 0, f.m.Registry().Len())
}

func TestStartPnpmNotFound(t *testing.T) {
	f := newFixture(t)
	f.ex.FailStart(fmt.Errorf("exec: %q: %w", "pnpm", exec.ErrNotFound))

	s := f.m.Start(context.Background(), validOptions())
	assert.Equal(t, StatusFailed, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, "pnpm not found. Please install pnpm first.", *s.Error)
	assert.Equal(t, 0, f.m.Registry().Len())
}

func TestStartInvalidOptions(t *testing.T) {
	f := newFixture(t)
	opts := validOptions()
	opts.RecordingMode = "slideshow"

	s := f.m.Start(context.Background(), opts)
	assert.Equal(t, StatusFailed, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, ErrInvalidMode.Error(), *s.Error)
	assert.Empty(t, f.ex.Starts())
}

func TestStatusPrunesExitedSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok := f.m.Start(ctx, validOptions())
	bad := f.m.Start(ctx, validOptions())
	hs := f.ex.Handles()
	require.Len(t, hs, 2)
	hs[0].Exit(nil)
	hs[1].Exit(errors.New("exit status 2"))

	st, err := f.m.Status(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	require.NotNil(t, st.Duration)
	assert.Nil(t, st.Error)

	st, err = f.m.Status(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
	require.NotNil(t, st.Error)
	assert.Equal(t, "exit status 2", *st.Error)

	assert.Equal(t, 0, f.m.Registry().Len())
}

func TestStopAfterExitFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.m.Start(ctx, validOptions())
	f.ex.Handles()[0].Exit(nil)

	err := f.m.Stop(ctx, s.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrProcessDone)
	assert.Contains(t, err.Error(), "Failed to stop recording process")
	assert.Equal(t, 0, f.m.Registry().Len())
}

func TestCloseTerminatesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.m.Start(ctx, validOptions())
	f.m.Start(ctx, validOptions())
	require.Equal(t, 2, f.m.Registry().Len())

	require.NoError(t, f.m.Close(ctx))
	assert.Equal(t, 0, f.m.Registry().Len())
	for _, h := range f.ex.Handles() {
		assert.Equal(t, 1, h.Terminated())
	}
}

func TestListRecordings(t *testing.T) {
	f := newFixture(t)
	names := f.m.List()
	require.NotNil(t, names)
	assert.Empty(t, names)

	require.NoError(t, afero.WriteFile(f.fs, projectDir+"/recordings/b.mp4", nil, 0o644))
	require.NoError(t, afero.WriteFile(f.fs, projectDir+"/recordings/a.gif", nil, 0o644))
	assert.Equal(t, []string{"a.gif", "b.mp4"}, f.m.List())
}

func TestOpenFolder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.OpenFolder(context.Background()))
	starts := f.ex.Starts()
	require.Len(t, starts, 1)
	assert.Equal(t, "xdg-open", starts[0].Name)
	assert.Equal(t, []string{projectDir + "/recordings"}, starts[0].Args)
	exists, err := afero.DirExists(f.fs, projectDir+"/recordings")
	require.NoError(t, err)
	assert.True(t, exists)

	f.ex.FailStart(exec.ErrNotFound)
	err = f.m.OpenFolder(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to open folder")
}

func TestLifecyclePersistsAndExports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.EnsureSchema(ctx))
	sink := &captureSink{}
	f.m.SetStore(db)
	f.m.SetHistorySinks(sink)

	stopped := f.m.Start(ctx, validOptions())
	exited := f.m.Start(ctx, validOptions())

	rec, err := db.GetBySession(ctx, stopped.ID)
	require.NoError(t, err)
	assert.Equal(t, "recording", rec.Status)
	assert.Equal(t, "mp4", rec.Format)
	assert.Equal(t, *stopped.OutputPath, rec.OutputPath)

	require.NoError(t, f.m.Stop(ctx, stopped.ID))
	rec, err = db.GetBySession(ctx, stopped.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec.Status)
	assert.True(t, rec.StoppedAt.Valid)

	f.ex.Handles()[1].Exit(errors.New("exit status 1"))
	require.Eventually(t, func() bool {
		r, err := db.GetBySession(ctx, exited.ID)
		return err == nil && r.Status == "failed"
	}, 2*time.Second, 10*time.Millisecond)
	rec, err = db.GetBySession(ctx, exited.ID)
	require.NoError(t, err)
	assert.Equal(t, "exit status 1", rec.Error.String)

	require.Eventually(t, func() bool { return len(sink.types()) == 4 }, 2*time.Second, 10*time.Millisecond)
	types := sink.types()
	assert.ElementsMatch(t, []history.EventType{history.EventStart, history.EventStart, history.EventStop, history.EventExit}, types)

	_, err = db.GetBySession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
