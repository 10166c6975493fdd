package platform

import (
	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/env"
)

type linux struct{ posix }

func (linux) Name() string { return OSLinux }

func (l linux) WellKnownPaths(command string, e *env.Env, fsys afero.Fs) []string {
	paths := []string{
		"/usr/bin/" + command,
		"/usr/local/bin/" + command,
		"/bin/" + command,
		"/snap/bin/" + command,
		"/var/lib/flatpak/exports/bin/" + command,
	}
	home, hasHome := e.Lookup("HOME")
	if hasHome {
		paths = append(paths,
			home+"/.local/bin/"+command,
			home+"/bin/"+command,
			home+"/.npm-global/bin/"+command,
			home+"/.nvm/current/bin/"+command,
		)
	}
	switch command {
	case "node":
		if hasHome {
			paths = append(paths, nvmNodePaths(l, home, fsys)...)
		}
	case "pnpm":
		if hasHome {
			paths = append(paths, home+"/.local/share/pnpm/pnpm")
		}
	}
	return paths
}

func (linux) PnpmInstallCommand() string {
	return "curl -fsSL https://get.pnpm.io/install.sh | sh -"
}

func (linux) FFmpegInstallCommand() (string, bool) { return "sudo apt install ffmpeg", true }

func (linux) BrowserCacheDir(e *env.Env) string {
	return e.Get("HOME") + "/.cache/ms-playwright"
}
