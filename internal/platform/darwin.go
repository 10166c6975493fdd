package platform

import (
	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/env"
)

type darwin struct{ posix }

func (darwin) Name() string { return OSDarwin }

// Homebrew installs into /opt/homebrew on Apple Silicon and /usr/local on Intel.
var homebrewCellars = []string{"/usr/local/Cellar/ffmpeg", "/opt/homebrew/Cellar/ffmpeg"}

func (d darwin) WellKnownPaths(command string, e *env.Env, fsys afero.Fs) []string {
	paths := []string{
		"/opt/homebrew/bin/" + command,
		"/usr/local/bin/" + command,
		"/usr/bin/" + command,
		"/bin/" + command,
	}
	home, hasHome := e.Lookup("HOME")
	if hasHome {
		paths = append(paths,
			home+"/.npm-global/bin/"+command,
			home+"/bin/"+command,
			home+"/.nvm/current/bin/"+command,
			home+"/.volta/bin/"+command,
			home+"/Library/pnpm/"+command,
		)
	}

	switch command {
	case "node":
		paths = append(paths, "/Applications/Node.js/bin/node")
		if hasHome {
			paths = append(paths, nvmNodePaths(d, home, fsys)...)
		}
	case "ffmpeg":
		paths = append(paths,
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/opt/ffmpeg/bin/ffmpeg",
			"/usr/local/opt/ffmpeg/bin/ffmpeg",
			"/Applications/FFmpeg/ffmpeg",
			"/Applications/FFmpeg/bin/ffmpeg",
		)
		if hasHome {
			for _, cellar := range homebrewCellars {
				for _, v := range listDirs(fsys, cellar) {
					paths = append(paths, cellar+"/"+v+"/bin/ffmpeg")
				}
			}
			paths = append(paths,
				"/opt/local/bin/ffmpeg", // MacPorts
				home+"/bin/ffmpeg",
				home+"/.local/bin/ffmpeg",
			)
		}
	case "pnpm":
		if hasHome {
			paths = append(paths,
				home+"/.local/share/pnpm/pnpm",
				home+"/Library/pnpm/pnpm",
				home+"/.npm-global/bin/pnpm",
			)
		}
		paths = append(paths,
			"/usr/local/lib/node_modules/pnpm/bin/pnpm.js",
			"/opt/homebrew/lib/node_modules/pnpm/bin/pnpm.js",
		)
	}
	return paths
}

func (darwin) ExtraToolPaths() []string {
	return []string{"/opt/homebrew/bin", "/usr/local/bin", "/opt/homebrew/opt/ffmpeg/bin"}
}

func (darwin) PnpmInstallCommand() string { return "brew install pnpm" }

func (darwin) FFmpegInstallCommand() (string, bool) { return "brew install ffmpeg", true }

func (darwin) BrowserCacheDir(e *env.Env) string {
	return e.Get("HOME") + "/Library/Caches/ms-playwright"
}

func (darwin) OpenFolderCommand(path string) (string, []string) {
	return "open", []string{path}
}
