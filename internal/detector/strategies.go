package detector

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/loykin/flowcap/internal/locator"
	"github.com/loykin/flowcap/internal/runner"
)

const installedMarker = "installed"

// ShellDetector runs the command through the platform shell after sourcing the
// user's profiles, so PATH additions made there are honored.
type ShellDetector struct {
	Loc     *locator.Locator
	Command string
	Args    []string
}

func (d ShellDetector) Detect(ctx context.Context) (Verdict, bool) {
	p := d.Loc.Platform()
	name, args := p.ShellCommand(p.ProbeScript(d.Command, d.Args))
	res, ok := run(ctx, d.Loc.Executor(), runner.Cmd{Name: name, Args: args, Env: d.Loc.ShellEnv()})
	if !ok {
		return Verdict{}, false
	}
	version := strings.TrimSpace(res.Stdout)
	if version == "" {
		version = strings.TrimSpace(res.Stderr)
	}
	if version == "" {
		version = installedMarker
	}
	return Verdict{Installed: true, Version: version, Source: d.Describe()}, true
}

func (d ShellDetector) Describe() string { return "shell:" + d.Command }

// DirectDetector executes the located path of the command without a shell.
type DirectDetector struct {
	Loc     *locator.Locator
	Command string
	Args    []string
}

func (d DirectDetector) Detect(ctx context.Context) (Verdict, bool) {
	path := d.Loc.Locate(ctx, d.Command)
	res, ok := run(ctx, d.Loc.Executor(), runner.Cmd{Name: path, Args: d.Args, Env: d.Loc.Env().Merge(nil)})
	if !ok {
		return Verdict{}, false
	}
	return Verdict{Installed: true, Version: orInstalled(strings.TrimSpace(res.Stdout)), Source: "direct:" + path}, true
}

func (d DirectDetector) Describe() string { return "direct:" + d.Command }

// CandidateDetector invokes every existing search-path entry in turn.
type CandidateDetector struct {
	Loc     *locator.Locator
	Command string
	Args    []string
}

func (d CandidateDetector) Detect(ctx context.Context) (Verdict, bool) {
	for _, path := range d.Loc.SearchPaths(d.Command) {
		if !d.Loc.IsCandidate(path) {
			continue
		}
		res, ok := run(ctx, d.Loc.Executor(), runner.Cmd{Name: path, Args: d.Args, Env: d.Loc.Env().Merge(nil)})
		if !ok {
			slog.Debug("Candidate failed to run", "command", d.Command, "path", path)
			continue
		}
		return Verdict{Installed: true, Version: orInstalled(firstLine(res.Stdout)), Source: "candidate:" + path}, true
	}
	return Verdict{}, false
}

func (d CandidateDetector) Describe() string { return "candidates:" + d.Command }

// AugmentedPathDetector retries through the shell with the platform's
// package-manager prefixes prepended to PATH when they are missing from it.
// Platforms without such prefixes never match.
type AugmentedPathDetector struct {
	Loc     *locator.Locator
	Command string
	Args    []string
}

func (d AugmentedPathDetector) Detect(ctx context.Context) (Verdict, bool) {
	p := d.Loc.Platform()
	extra := p.ExtraToolPaths()
	if len(extra) == 0 {
		return Verdict{}, false
	}
	path := AugmentPath(d.Loc.Env().Get("PATH"), extra, p.ListSeparator())
	script := strings.Join(append([]string{d.Command}, d.Args...), " ")
	name, args := p.ShellCommand(script)
	res, ok := run(ctx, d.Loc.Executor(), runner.Cmd{Name: name, Args: args, Env: d.Loc.Env().WithSet("PATH", path).Merge(nil)})
	if !ok {
		return Verdict{}, false
	}
	return Verdict{Installed: true, Version: orInstalled(firstLine(res.Stdout)), Source: d.Describe()}, true
}

func (d AugmentedPathDetector) Describe() string { return "augmented-path:" + d.Command }

// AugmentPath prepends each entry of extra that is not already an entry of
// path. Later entries end up in front.
func AugmentPath(path string, extra []string, sep string) string {
	have := make(map[string]bool)
	for _, dir := range strings.Split(path, sep) {
		if dir != "" {
			have[dir] = true
		}
	}
	for _, dir := range extra {
		if dir == "" || have[dir] {
			continue
		}
		have[dir] = true
		if path == "" {
			path = dir
		} else {
			path = dir + sep + path
		}
	}
	return path
}

// CacheDirDetector matches when Dir exists and has at least one entry.
type CacheDirDetector struct {
	Fs  afero.Fs
	Dir string
}

func (d CacheDirDetector) Detect(context.Context) (Verdict, bool) {
	entries, err := afero.ReadDir(d.Fs, d.Dir)
	if err != nil || len(entries) == 0 {
		return Verdict{}, false
	}
	return Verdict{Installed: true, Version: "browsers installed", Source: d.Describe()}, true
}

func (d CacheDirDetector) Describe() string { return "cache-dir:" + d.Dir }

func run(ctx context.Context, ex runner.Executor, c runner.Cmd) (runner.Result, bool) {
	res, err := ex.Run(ctx, c)
	if err != nil || res.ExitCode != 0 {
		return res, false
	}
	return res, true
}

func orInstalled(s string) string {
	if s == "" {
		return installedMarker
	}
	return s
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// ProbeDetector runs the full Prober tiers for one command line.
type ProbeDetector struct {
	Prober  *Prober
	Command string
	Args    []string
}

func (d ProbeDetector) Detect(ctx context.Context) (Verdict, bool) {
	v := d.Prober.Probe(ctx, d.Command, d.Args...)
	return v, v.Installed
}

func (d ProbeDetector) Describe() string {
	return "probe:" + strings.Join(append([]string{d.Command}, d.Args...), " ")
}
