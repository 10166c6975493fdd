package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func TestRunCollectsOutput(t *testing.T) {
	requireUnix(t)
	res, err := NewOS().Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo out; echo err 1>&2"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestRunNonZeroExit(t *testing.T) {
	requireUnix(t)
	res, err := NewOS().Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunMissingBinary(t *testing.T) {
	_, err := NewOS().Run(context.Background(), Cmd{Name: "__definitely_not_exists__"})
	require.Error(t, err)
}

func TestRunHonoursDirAndEnv(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	res, err := NewOS().Run(context.Background(), Cmd{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $FLOWCAP_TEST"},
		Dir:  dir,
		Env:  []string{"FLOWCAP_TEST=yes", "PATH=" + os.Getenv("PATH")},
	})
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, res.Stdout, filepath.Base(resolved))
	assert.Contains(t, res.Stdout, "yes")
}

func TestStartAndTerminate(t *testing.T) {
	requireUnix(t)
	h, err := NewOS().Start(Cmd{Name: "sleep", Args: []string{"30"}}, nil, nil)
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)
	assert.False(t, h.Exited())

	require.NoError(t, h.Terminate(2*time.Second))
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process was not reaped after Terminate")
	}
	assert.True(t, h.Exited())
	assert.Error(t, h.ExitErr())

	err = h.Terminate(time.Second)
	assert.True(t, errors.Is(err, ErrProcessDone), "got %v", err)
}

func TestStartReapsNaturalExit(t *testing.T) {
	requireUnix(t)
	h, err := NewOS().Start(Cmd{Name: "true"}, nil, nil)
	require.NoError(t, err)
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.NoError(t, h.ExitErr())
}

func TestStartMissingBinary(t *testing.T) {
	_, err := NewOS().Start(Cmd{Name: "__definitely_not_exists__"}, nil, nil)
	assert.Error(t, err)
}
