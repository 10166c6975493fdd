// Package flowcap is the backend of the Figma flow recorder: it checks that
// the recording toolchain is installed, runs recorder sessions and exposes
// them to a UI over a local HTTP bridge.
package flowcap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	cfg "github.com/loykin/flowcap/internal/config"
	"github.com/loykin/flowcap/internal/cron"
	"github.com/loykin/flowcap/internal/deps"
	"github.com/loykin/flowcap/internal/detector"
	"github.com/loykin/flowcap/internal/env"
	"github.com/loykin/flowcap/internal/history"
	hfactory "github.com/loykin/flowcap/internal/history/factory"
	"github.com/loykin/flowcap/internal/locator"
	"github.com/loykin/flowcap/internal/metrics"
	"github.com/loykin/flowcap/internal/platform"
	"github.com/loykin/flowcap/internal/recording"
	"github.com/loykin/flowcap/internal/runner"
	iapi "github.com/loykin/flowcap/internal/server"
	"github.com/loykin/flowcap/internal/store"
	sfactory "github.com/loykin/flowcap/internal/store/factory"
)

// Re-export the types the UI exchanges with the backend.

type Config = cfg.Config

type RecordingOptions = recording.Options

type RecordingSession = recording.Session

type SessionStatus = recording.Status

type SystemDependency = deps.SystemDependency

type InstallationStatus = deps.InstallationStatus

type DependencyStatus = deps.DependencyStatus

type DependencyInfo = deps.DependencyInfo

type HistoryRecord = store.Record

type ResourceSample = metrics.RecorderSample

var (
	ErrSessionNotFound = recording.ErrSessionNotFound
	ErrStoreDisabled   = iapi.ErrStoreDisabled
	ErrRecordNotFound  = store.ErrNotFound
)

// LoadConfig reads a TOML file (optional) with FLOWCAP_* overrides.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// DefaultConfig is the configuration used without a file.
func DefaultConfig() Config { return cfg.Default() }

// Option customizes App construction.
type Option func(*options)

type options struct {
	exec runner.Executor
	fs   afero.Fs
	env  *env.Env
	goos string
	cwd  string
}

// WithExecutor replaces the subprocess runner.
func WithExecutor(ex runner.Executor) Option { return func(o *options) { o.exec = ex } }

// WithFs replaces the filesystem used for lookups and the recordings directory.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithEnv replaces the OS environment snapshot.
func WithEnv(e *env.Env) Option { return func(o *options) { o.env = e } }

// WithGOOS selects the platform tables for goos instead of the running OS.
func WithGOOS(goos string) Option { return func(o *options) { o.goos = goos } }

// WithWorkDir sets the directory the project root is resolved from.
func WithWorkDir(dir string) Option { return func(o *options) { o.cwd = dir } }

var _ iapi.Service = (*App)(nil)

// App owns every component for the lifetime of the process.
type App struct {
	cfg     Config
	checker *deps.Checker
	rec     *recording.Manager
	st      store.Store
	sinks   history.Multi
	sampler *metrics.RecorderSampler
	jobs    *cron.Scheduler
	cancel  context.CancelFunc
}

// New wires the locator, prober, dependency checker and session manager, and
// opens the configured store and history sinks.
func New(c Config, opts ...Option) (*App, error) {
	o := options{goos: runtime.GOOS}
	for _, fn := range opts {
		fn(&o)
	}
	if o.exec == nil {
		o.exec = runner.NewOS()
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.env == nil {
		o.env = env.FromOS()
	}
	if o.cwd == "" {
		o.cwd = c.Dir
	}
	if o.cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		o.cwd = wd
	}

	kvs, err := c.GlobalEnv()
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	e := o.env
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e = e.WithSet(kv[:i], kv[i+1:])
		}
	}

	loc := locator.New(platform.For(o.goos), e, o.fs, o.exec)
	prober := detector.NewProber(loc)
	a := &App{
		cfg:     c,
		checker: deps.NewChecker(prober, o.cwd),
		rec:     recording.NewManager(loc, o.cwd, c.Recorder),
		sampler: metrics.NewRecorderSampler(c.Metrics.Sampler),
		jobs:    cron.NewScheduler(),
	}

	ctx := context.Background()
	if c.Store.DSN != "" {
		st, err := sfactory.Open(ctx, c.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.st = st
		a.rec.SetStore(st)
		if c.Store.Retention > 0 {
			a.purgeHistory(ctx)
			if c.Store.PurgeSchedule != "" {
				err := a.jobs.Add(&cron.Job{
					Name:     "purge-history",
					Schedule: c.Store.PurgeSchedule,
					Run:      func(ctx context.Context) error { a.purgeHistory(ctx); return nil },
				})
				if err != nil {
					_ = a.closeBackends()
					return nil, fmt.Errorf("schedule history purge: %w", err)
				}
			}
		}
	}
	sinks, err := hfactory.NewMulti(c.History.Sinks)
	if err != nil {
		_ = a.closeBackends()
		return nil, fmt.Errorf("open history sinks: %w", err)
	}
	a.sinks = sinks
	a.rec.SetHistorySinks(sinks...)

	sctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.sampler.Start(sctx, a.rec.Registry().PIDs)
	if err := a.jobs.Start(sctx); err != nil {
		cancel()
		a.sampler.Stop()
		_ = a.closeBackends()
		return nil, err
	}
	slog.Debug("flowcap initialized", "cwd", o.cwd, "project_root", a.rec.ProjectRoot(), "os", o.goos)
	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() Config { return a.cfg }

// ProjectRoot is the directory tools and the recorder run in.
func (a *App) ProjectRoot() string { return a.rec.ProjectRoot() }

func (a *App) Greet(name string) string {
	return fmt.Sprintf("Hello, %s! Welcome to Figma Flow Capture!", name)
}

func (a *App) CheckSystemDependencies(ctx context.Context) InstallationStatus {
	return a.checker.CheckSystem(ctx)
}

func (a *App) CheckDependencies(ctx context.Context) DependencyStatus {
	return a.checker.Check(ctx)
}

func (a *App) InstallDependencies(ctx context.Context) (string, error) {
	return a.checker.InstallDependencies(ctx)
}

func (a *App) InstallPlaywrightBrowsers(ctx context.Context) (string, error) {
	return a.checker.InstallBrowsers(ctx)
}

func (a *App) StartRecording(ctx context.Context, opts RecordingOptions) RecordingSession {
	return a.rec.Start(ctx, opts)
}

func (a *App) GetRecordingStatus(ctx context.Context, id string) (RecordingSession, error) {
	return a.rec.Status(ctx, id)
}

func (a *App) StopRecording(ctx context.Context, id string) error {
	return a.rec.Stop(ctx, id)
}

func (a *App) ListRecordings(context.Context) ([]string, error) {
	return a.rec.List(), nil
}

func (a *App) OpenRecordingsFolder(ctx context.Context) error {
	return a.rec.OpenFolder(ctx)
}

// RecordingHistory returns the most recent persisted sessions, newest first.
func (a *App) RecordingHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if a.st == nil {
		return nil, ErrStoreDisabled
	}
	return a.st.Recent(ctx, limit)
}

// SessionRecord returns the persisted row of one session.
func (a *App) SessionRecord(ctx context.Context, id string) (HistoryRecord, error) {
	if a.st == nil {
		return HistoryRecord{}, ErrStoreDisabled
	}
	return a.st.GetBySession(ctx, id)
}

// ResourceHistory returns the retained samples of a recorder, oldest first.
func (a *App) ResourceHistory(id string) []ResourceSample {
	return a.sampler.History(id)
}

// Resources returns the latest resource sample of a running recorder.
func (a *App) Resources(id string) (ResourceSample, bool) {
	return a.sampler.Latest(id)
}

// RegisterMetrics registers session counters and, when sampling is enabled,
// the per-recorder gauges.
func (a *App) RegisterMetrics(r prometheus.Registerer) error {
	if err := metrics.Register(r); err != nil {
		return err
	}
	return a.sampler.RegisterMetrics(r)
}

func (a *App) router(basePath string, withMetrics bool) *iapi.Router {
	r := iapi.NewRouter(a, basePath)
	if withMetrics {
		r = r.WithMetrics()
	}
	return r
}

// Handler returns the HTTP bridge for the UI. withMetrics also serves /metrics.
func (a *App) Handler(basePath string, withMetrics bool) http.Handler {
	return a.router(basePath, withMetrics).Handler()
}

// NewHTTPServer returns an unstarted server for the HTTP bridge on addr.
func NewHTTPServer(addr, basePath string, a *App, withMetrics bool) *http.Server {
	return iapi.NewServer(addr, a.router(basePath, withMetrics))
}

// ServeMetrics serves /metrics on addr from the default registry until the
// listener fails.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}

// Close stops every running recorder, then the sampler and the backends.
func (a *App) Close(ctx context.Context) error {
	err := a.rec.Close(ctx)
	a.cancel()
	a.jobs.Stop()
	a.sampler.Stop()
	return errors.Join(err, a.closeBackends())
}

// purgeHistory drops persisted sessions older than the retention window.
func (a *App) purgeHistory(ctx context.Context) {
	n, err := a.st.PurgeOlderThan(ctx, time.Now().Add(-a.cfg.Store.Retention))
	if err != nil {
		slog.Warn("Purging old session history failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Purged old session history", "rows", n)
	}
}

func (a *App) closeBackends() error {
	var errs []error
	if a.sinks != nil {
		errs = append(errs, a.sinks.Close())
	}
	if a.st != nil {
		errs = append(errs, a.st.Close())
	}
	return errors.Join(errs...)
}
