// Package deps reports whether the tools a recording needs are present and
// runs their installers.
package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loykin/flowcap/internal/detector"
	"github.com/loykin/flowcap/internal/locator"
	"github.com/loykin/flowcap/internal/project"
	"github.com/loykin/flowcap/internal/runner"
)

// ErrPnpmNotFound is returned when no pnpm executable can be run. The UI
// shows the text as is, sentence punctuation included.
var ErrPnpmNotFound = errors.New("pnpm not found. Please install pnpm first.")

const ffmpegDebugPaths = 5

// Checker probes the required tools. Cwd is the directory the project root is
// resolved from.
type Checker struct {
	prober *detector.Prober
	loc    *locator.Locator
	cwd    string
}

func NewChecker(prober *detector.Prober, cwd string) *Checker {
	return &Checker{prober: prober, loc: prober.Locator(), cwd: cwd}
}

// ProjectRoot resolves the directory tools are run from.
func (c *Checker) ProjectRoot() string {
	return project.ResolveRoot(c.loc.Fs(), c.cwd)
}

// CheckSystem probes Node.js, pnpm, FFmpeg and the Playwright browsers in
// that order and attaches install guidance.
func (c *Checker) CheckSystem(ctx context.Context) InstallationStatus {
	plat := c.loc.Platform()
	var list []SystemDependency

	node := c.prober.Probe(ctx, "node", "--version")
	list = append(list, SystemDependency{
		Name:       NameNodeJS,
		Installed:  node.Installed,
		Version:    version(node),
		InstallURL: ptr(URLNodeJS),
	})

	pnpm := c.prober.Probe(ctx, "pnpm", "--version")
	pnpmDep := SystemDependency{
		Name:       NamePnpm,
		Installed:  pnpm.Installed,
		Version:    version(pnpm),
		InstallURL: ptr(URLPnpm),
	}
	if !pnpm.Installed {
		pnpmDep.InstallCommand = ptr(plat.PnpmInstallCommand())
	}
	list = append(list, pnpmDep)

	ffmpeg := c.prober.Probe(ctx, "ffmpeg", "-version")
	slog.Debug("FFmpeg detection result", "installed", ffmpeg.Installed, "version", ffmpeg.Version, "source", ffmpeg.Source)
	if !ffmpeg.Installed {
		c.logFFmpegCandidates(ctx)
	}
	ffmpegDep := SystemDependency{
		Name:       NameFFmpeg,
		Installed:  ffmpeg.Installed,
		InstallURL: ptr(URLFFmpeg),
	}
	if v := version(ffmpeg); v != nil {
		ffmpegDep.Version = ptr(firstLine(*v))
	}
	if cmd, ok := plat.FFmpegInstallCommand(); ok {
		ffmpegDep.InstallCommand = ptr(cmd)
	}
	list = append(list, ffmpegDep)

	browsers := c.Browsers(ctx)
	list = append(list, SystemDependency{
		Name:           NameBrowsers,
		Installed:      browsers.Installed,
		Version:        version(browsers),
		InstallCommand: ptr(BrowsersInstallCommand),
		InstallURL:     ptr(URLBrowsers),
	})

	ready := true
	for _, d := range list {
		ready = ready && d.Installed
	}
	return InstallationStatus{Dependencies: list, ReadyToRecord: ready, ProjectPath: c.ProjectRoot()}
}

// Check is the lightweight variant of CheckSystem: no guidance, no readiness,
// and the FFmpeg version is reported untruncated.
func (c *Checker) Check(ctx context.Context) DependencyStatus {
	return DependencyStatus{
		NodeJS:   info(c.prober.Probe(ctx, "node", "--version")),
		Pnpm:     info(c.prober.Probe(ctx, "pnpm", "--version")),
		FFmpeg:   info(c.prober.Probe(ctx, "ffmpeg", "-version")),
		Browsers: info(c.Browsers(ctx)),
	}
}

// Browsers reports whether Playwright can run, trying each way its CLI may be
// reachable before falling back to the browser cache directory.
func (c *Checker) Browsers(ctx context.Context) detector.Verdict {
	plat := c.loc.Platform()
	pnpm := c.loc.Locate(ctx, "pnpm")
	local := plat.Join(plat.Join(plat.Join(c.ProjectRoot(), "node_modules"), ".bin"), "playwright")
	v, _ := detector.Chain(
		detector.ProbeDetector{Prober: c.prober, Command: pnpm, Args: []string{"exec", "playwright", "--version"}},
		detector.ProbeDetector{Prober: c.prober, Command: "playwright", Args: []string{"--version"}},
		detector.ProbeDetector{Prober: c.prober, Command: "npx", Args: []string{"playwright", "--version"}},
		detector.ProbeDetector{Prober: c.prober, Command: local, Args: []string{"--version"}},
		detector.CacheDirDetector{Fs: c.loc.Fs(), Dir: plat.BrowserCacheDir(c.loc.Env())},
	).Detect(ctx)
	return v
}

// InstallDependencies runs `pnpm install` in the project root.
func (c *Checker) InstallDependencies(ctx context.Context) (string, error) {
	if err := c.runPnpm(ctx, "pnpm install", "install"); err != nil {
		return "", err
	}
	return "Dependencies installed successfully", nil
}

// InstallBrowsers runs the project's install-browsers script.
func (c *Checker) InstallBrowsers(ctx context.Context) (string, error) {
	if err := c.runPnpm(ctx, "Browser installation", "run", "install-browsers"); err != nil {
		return "", err
	}
	return "Playwright browsers installed successfully", nil
}

func (c *Checker) runPnpm(ctx context.Context, what string, args ...string) error {
	root := c.ProjectRoot()
	pnpm := c.loc.Locate(ctx, "pnpm")
	slog.Info("Running pnpm", "path", pnpm, "args", args, "dir", root)
	res, err := c.loc.Executor().Run(ctx, runner.Cmd{Name: pnpm, Args: args, Dir: root, Env: c.loc.Env().Merge(nil)})
	switch {
	case err == nil && res.ExitCode == 0:
		return nil
	case !runner.Spawned(res) && runner.IsNotFound(err):
		return ErrPnpmNotFound
	case !runner.Spawned(res):
		return fmt.Errorf("failed to run pnpm %s: %w", strings.Join(args, " "), err)
	default:
		return fmt.Errorf("%s failed: %s", what, strings.TrimSpace(res.Stderr))
	}
}

func (c *Checker) logFFmpegCandidates(ctx context.Context) {
	slog.Debug("FFmpeg path lookup", "path", c.loc.Locate(ctx, "ffmpeg"))
	paths := c.loc.SearchPaths("ffmpeg")
	n := min(ffmpegDebugPaths, len(paths))
	for _, p := range paths[:n] {
		_, err := c.loc.Fs().Stat(p)
		slog.Debug("FFmpeg candidate", "path", p, "exists", err == nil)
	}
}

func version(v detector.Verdict) *string {
	if !v.Installed {
		return nil
	}
	return ptr(v.Version)
}

func info(v detector.Verdict) DependencyInfo {
	return DependencyInfo{Installed: v.Installed, Version: version(v)}
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
