// Package locator resolves a logical command name such as "pnpm" to an
// executable path. Resolution never fails: when nothing is found the bare name
// is returned and left to the shell's PATH lookup at execution time.
package locator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/env"
	"github.com/loykin/flowcap/internal/platform"
	"github.com/loykin/flowcap/internal/runner"
)

type Locator struct {
	plat platform.Platform
	env  *env.Env
	fs   afero.Fs
	exec runner.Executor
}

// New binds a locator to p. On Windows e is read case-insensitively, since
// the variable is usually spelled "Path" there.
func New(p platform.Platform, e *env.Env, fsys afero.Fs, ex runner.Executor) *Locator {
	if p.IsWindows() && !e.Folded() {
		e = e.CaseInsensitive()
	}
	return &Locator{plat: p, env: e, fs: fsys, exec: ex}
}

func (l *Locator) Platform() platform.Platform { return l.plat }
func (l *Locator) Env() *env.Env               { return l.env }
func (l *Locator) Fs() afero.Fs                { return l.fs }
func (l *Locator) Executor() runner.Executor   { return l.exec }

// SearchPaths lists candidate locations for command: every PATH entry first,
// then the platform's well-known install directories. Duplicates are removed
// keeping the first occurrence, since order encodes preference.
func (l *Locator) SearchPaths(command string) []string {
	var paths []string
	if pathEnv, ok := l.env.Lookup("PATH"); ok {
		for _, dir := range strings.Split(pathEnv, l.plat.ListSeparator()) {
			dir = strings.TrimSpace(dir)
			if dir == "" {
				continue
			}
			paths = append(paths, l.plat.Join(dir, command))
		}
	}
	paths = append(paths, l.plat.WellKnownPaths(command, l.env, l.fs)...)
	return dedupe(paths)
}

// Locate returns the best path for command, or command itself.
func (l *Locator) Locate(ctx context.Context, command string) string {
	if p, ok := l.viaShell(ctx, command); ok {
		slog.Debug("Located command via shell", "command", command, "path", p)
		return p
	}
	for _, p := range l.SearchPaths(command) {
		if l.IsCandidate(p) {
			slog.Debug("Located command via search paths", "command", command, "path", p)
			return p
		}
	}
	slog.Debug("Command not located, deferring to PATH", "command", command)
	return command
}

// IsCandidate reports whether p can be tried as an executable: a regular
// file, or on Windows anything that exists.
func (l *Locator) IsCandidate(p string) bool {
	fi, err := l.fs.Stat(p)
	if err != nil {
		return false
	}
	return l.plat.IsWindows() || fi.Mode().IsRegular()
}

// ShellEnv is the environment handed to shell probes: the snapshot with PATH
// forwarded explicitly.
func (l *Locator) ShellEnv() []string {
	return l.env.WithSet("PATH", l.env.Get("PATH")).Merge(nil)
}

func (l *Locator) viaShell(ctx context.Context, command string) (string, bool) {
	name, args := l.plat.ShellCommand(l.plat.LocateScript(command))
	res, err := l.exec.Run(ctx, runner.Cmd{Name: name, Args: args, Env: l.ShellEnv()})
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", false
	}
	// where(1) on Windows prints every match; the first one wins.
	if i := strings.IndexAny(out, "\r\n"); i >= 0 {
		out = strings.TrimSpace(out[:i])
	}
	return out, true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
