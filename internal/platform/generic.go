package platform

import (
	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/env"
)

// generic serves operating systems without a dedicated table. Only PATH is
// searched and no FFmpeg install command is offered.
type generic struct {
	posix
	name string
}

func (g generic) Name() string { return g.name }

func (generic) WellKnownPaths(string, *env.Env, afero.Fs) []string { return nil }

func (generic) PnpmInstallCommand() string { return "npm install -g pnpm" }

func (generic) FFmpegInstallCommand() (string, bool) { return "", false }

func (generic) BrowserCacheDir(e *env.Env) string {
	return e.Get("HOME") + "/.cache/ms-playwright"
}
