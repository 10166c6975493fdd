// Package platform holds the per-OS tables the locator, prober and session
// manager need: shell invocation syntax, well-known install locations, install
// guidance and the browser cache location. An implementation is selected at
// runtime from a GOOS tag so every table can be exercised on any host.
package platform

import (
	"runtime"
	"strings"

	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/env"
)

// Operating system tags understood by For.
const (
	OSDarwin  = "darwin"
	OSLinux   = "linux"
	OSWindows = "windows"
)

// profilePrelude sources the usual interactive profiles so that PATH entries
// configured there (Homebrew, nvm, volta) are visible to the probed command.
const profilePrelude = "source ~/.zshrc 2>/dev/null || true; " +
	"source ~/.bash_profile 2>/dev/null || true; " +
	"source ~/.profile 2>/dev/null || true; "

// Platform is the capability set that differs between operating systems.
type Platform interface {
	// Name returns the GOOS tag this implementation serves.
	Name() string
	// ListSeparator separates PATH entries.
	ListSeparator() string
	// Join joins a directory and a file name using the platform separator.
	Join(dir, name string) string
	// IsWindows reports whether executables are matched by existence only.
	IsWindows() bool
	// ShellCommand wraps script in the platform shell.
	ShellCommand(script string) (string, []string)
	// LocateScript returns a shell script printing the path of command.
	LocateScript(command string) string
	// ProbeScript returns a shell script running command with args.
	ProbeScript(command string, args []string) string
	// WellKnownPaths lists install locations for command beyond PATH.
	WellKnownPaths(command string, e *env.Env, fsys afero.Fs) []string
	// ExtraToolPaths lists package-manager prefixes worth forcing onto PATH.
	ExtraToolPaths() []string
	// PnpmInstallCommand is shown when pnpm is missing.
	PnpmInstallCommand() string
	// FFmpegInstallCommand is shown next to the FFmpeg entry, if known.
	FFmpegInstallCommand() (string, bool)
	// BrowserCacheDir is where Playwright keeps downloaded browsers.
	BrowserCacheDir(e *env.Env) string
	// OpenFolderCommand opens path in the OS file manager.
	OpenFolderCommand(path string) (string, []string)
}

// Current returns the implementation for the running OS.
func Current() Platform { return For(runtime.GOOS) }

// For returns the implementation for goos. Unknown tags get a POSIX shell
// with no extra install locations.
func For(goos string) Platform {
	switch goos {
	case OSDarwin:
		return darwin{}
	case OSLinux:
		return linux{}
	case OSWindows:
		return windows{}
	default:
		return generic{name: goos}
	}
}

// posix carries what darwin, linux and unknown unix-likes share.
type posix struct{}

func (posix) ListSeparator() string { return ":" }
func (posix) IsWindows() bool       { return false }

func (posix) Join(dir, name string) string {
	return strings.TrimRight(dir, "/") + "/" + name
}

func (posix) ShellCommand(script string) (string, []string) {
	return "sh", []string{"-c", script}
}

func (posix) LocateScript(command string) string {
	return profilePrelude + "which " + command
}

func (posix) ProbeScript(command string, args []string) string {
	return profilePrelude + joinCommand(command, args)
}

func (posix) ExtraToolPaths() []string { return nil }

func (posix) OpenFolderCommand(path string) (string, []string) {
	return "xdg-open", []string{path}
}

func joinCommand(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}

// listDirs returns the sub-directories of dir, or nil when it cannot be read.
func listDirs(fsys afero.Fs, dir string) []string {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// nvmNodePaths lists <home>/.nvm/versions/node/<version>/bin/node.
func nvmNodePaths(p Platform, home string, fsys afero.Fs) []string {
	root := p.Join(p.Join(p.Join(home, ".nvm"), "versions"), "node")
	var out []string
	for _, v := range listDirs(fsys, root) {
		out = append(out, p.Join(p.Join(p.Join(root, v), "bin"), "node"))
	}
	return out
}
