package locator

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/flowcap/internal/env"
	"github.com/loykin/flowcap/internal/platform"
	"github.com/loykin/flowcap/internal/runner/runnertest"
)

func newLocator(t *testing.T, goos string, vars map[string]string) (*Locator, afero.Fs, *runnertest.Executor) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	ex := runnertest.New()
	return New(platform.For(goos), env.FromMap(vars), fsys, ex), fsys, ex
}

func shellKey(p platform.Platform, script string) (string, []string) {
	return p.ShellCommand(script)
}

func TestSearchPathsDedupedInOrder(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows", "freebsd"} {
		t.Run(goos, func(t *testing.T) {
			sep := platform.For(goos).ListSeparator()
			l, _, _ := newLocator(t, goos, map[string]string{
				"PATH":    "/usr/local/bin" + sep + " /usr/bin " + sep + sep + "/usr/local/bin",
				"HOME":    "/home/me",
				"APPDATA": `C:\AppData`,
			})
			for _, cmd := range []string{"node", "pnpm", "ffmpeg", "npx"} {
				paths := l.SearchPaths(cmd)
				seen := map[string]bool{}
				for _, p := range paths {
					require.False(t, seen[p], "duplicate %q in %v", p, paths)
					seen[p] = true
				}
				require.NotEmpty(t, paths)
				assert.Equal(t, l.plat.Join("/usr/local/bin", cmd), paths[0], "PATH entries come first")
				assert.Equal(t, l.plat.Join("/usr/bin", cmd), paths[1], "entries are trimmed")
			}
		})
	}
}

func TestSearchPathsWindowsPathSpelling(t *testing.T) {
	l, _, _ := newLocator(t, "windows", map[string]string{
		"Path":        `C:\tools;C:\node`,
		"ProgramData": `C:\ProgramData`,
	})
	paths := l.SearchPaths("pnpm")
	require.GreaterOrEqual(t, len(paths), 2)
	assert.Equal(t, l.plat.Join(`C:\tools`, "pnpm"), paths[0])
	assert.Equal(t, l.plat.Join(`C:\node`, "pnpm"), paths[1])
	assert.Equal(t, `C:\tools;C:\node`, l.Env().Get("PATH"))
}

func TestSearchPathsLinuxKeysAreCaseSensitive(t *testing.T) {
	l, _, _ := newLocator(t, "linux", map[string]string{"Path": "/opt/odd/bin"})
	for _, p := range l.SearchPaths("node") {
		assert.NotEqual(t, "/opt/odd/bin/node", p)
	}
}

func TestSearchPathsWithoutPATH(t *testing.T) {
	l, _, _ := newLocator(t, "linux", map[string]string{"HOME": "/home/me"})
	paths := l.SearchPaths("node")
	assert.Equal(t, "/usr/bin/node", paths[0])
}

func TestLocateViaShell(t *testing.T) {
	l, _, ex := newLocator(t, "linux", map[string]string{"PATH": "/usr/bin"})
	name, args := shellKey(l.plat, l.plat.LocateScript("pnpm"))
	ex.Succeed("/home/me/.local/share/pnpm/pnpm\n/usr/bin/pnpm\n", name, args...)

	assert.Equal(t, "/home/me/.local/share/pnpm/pnpm", l.Locate(context.Background(), "pnpm"))
	calls := ex.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Env, "PATH=/usr/bin")
}

func TestLocateEmptyShellOutputFallsThrough(t *testing.T) {
	l, fsys, ex := newLocator(t, "linux", map[string]string{"PATH": "/opt/bin", "HOME": "/home/me"})
	name, args := shellKey(l.plat, l.plat.LocateScript("node"))
	ex.Succeed("   \n", name, args...)
	require.NoError(t, afero.WriteFile(fsys, "/home/me/.nvm/current/bin/node", []byte("bin"), 0o755))

	assert.Equal(t, "/home/me/.nvm/current/bin/node", l.Locate(context.Background(), "node"))
}

func TestLocateSkipsDirectoriesOffWindows(t *testing.T) {
	l, fsys, _ := newLocator(t, "linux", map[string]string{"PATH": "/a:/b"})
	require.NoError(t, fsys.MkdirAll("/a/ffmpeg", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/b/ffmpeg", []byte("bin"), 0o755))

	assert.Equal(t, "/b/ffmpeg", l.Locate(context.Background(), "ffmpeg"))
}

func TestLocateWindowsAcceptsAnyExistingEntry(t *testing.T) {
	l, fsys, _ := newLocator(t, "windows", map[string]string{"PATH": `C:\tools`})
	require.NoError(t, fsys.MkdirAll(`C:\tools\ffmpeg`, 0o755))

	assert.Equal(t, `C:\tools\ffmpeg`, l.Locate(context.Background(), "ffmpeg"))
}

func TestLocateAbsentReturnsBareName(t *testing.T) {
	l, _, _ := newLocator(t, "darwin", map[string]string{"PATH": "/usr/bin", "HOME": "/Users/me"})
	assert.Equal(t, "definitely-absent-tool", l.Locate(context.Background(), "definitely-absent-tool"))
}
