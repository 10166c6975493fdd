package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/loykin/flowcap"
	"github.com/loykin/flowcap/internal/logger"
	"github.com/loykin/flowcap/pkg/client"
)

// backend is what the commands drive: the daemon over HTTP, or an App built
// in this process.
type backend interface {
	Greet(ctx context.Context, name string) (string, error)
	SystemDependencies(ctx context.Context) (any, error)
	Dependencies(ctx context.Context) (any, error)
	InstallDependencies(ctx context.Context) (string, error)
	InstallBrowsers(ctx context.Context) (string, error)
	StartRecording(ctx context.Context, opts client.RecordingOptions) (client.RecordingSession, error)
	RecordingStatus(ctx context.Context, id string) (client.RecordingSession, error)
	StopRecording(ctx context.Context, id string) error
	ListRecordings(ctx context.Context) ([]string, error)
	OpenRecordingsFolder(ctx context.Context) error
	History(ctx context.Context, limit int) (any, error)
	SessionHistory(ctx context.Context, id string) (any, error)
	Close(ctx context.Context) error
}

type remote struct{ *client.Client }

func (r remote) SystemDependencies(ctx context.Context) (any, error) {
	return r.Client.SystemDependencies(ctx)
}

func (r remote) Dependencies(ctx context.Context) (any, error) { return r.Client.Dependencies(ctx) }

func (r remote) History(ctx context.Context, limit int) (any, error) {
	return r.Client.History(ctx, limit)
}

func (r remote) SessionHistory(ctx context.Context, id string) (any, error) {
	return r.Client.Session(ctx, id)
}

func (remote) Close(context.Context) error { return nil }

type local struct {
	app    *flowcap.App
	logCls io.Closer
}

// newLocal builds an in-process App from the config file, logging to stderr.
func newLocal(configPath string) (*local, error) {
	cfg, err := flowcap.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	cls, err := logger.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	app, err := flowcap.New(cfg)
	if err != nil {
		_ = cls.Close()
		return nil, err
	}
	return &local{app: app, logCls: cls}, nil
}

func (l *local) Greet(_ context.Context, name string) (string, error) {
	return l.app.Greet(name), nil
}

func (l *local) SystemDependencies(ctx context.Context) (any, error) {
	return l.app.CheckSystemDependencies(ctx), nil
}

func (l *local) Dependencies(ctx context.Context) (any, error) {
	return l.app.CheckDependencies(ctx), nil
}

func (l *local) InstallDependencies(ctx context.Context) (string, error) {
	return l.app.InstallDependencies(ctx)
}

func (l *local) InstallBrowsers(ctx context.Context) (string, error) {
	return l.app.InstallPlaywrightBrowsers(ctx)
}

func (l *local) StartRecording(ctx context.Context, o client.RecordingOptions) (client.RecordingSession, error) {
	return toClientSession(l.app.StartRecording(ctx, flowcap.RecordingOptions(o))), nil
}

func (l *local) RecordingStatus(ctx context.Context, id string) (client.RecordingSession, error) {
	s, err := l.app.GetRecordingStatus(ctx, id)
	return toClientSession(s), err
}

func (l *local) StopRecording(ctx context.Context, id string) error {
	return l.app.StopRecording(ctx, id)
}

func (l *local) ListRecordings(ctx context.Context) ([]string, error) {
	return l.app.ListRecordings(ctx)
}

func (l *local) OpenRecordingsFolder(ctx context.Context) error {
	return l.app.OpenRecordingsFolder(ctx)
}

func (l *local) History(ctx context.Context, limit int) (any, error) {
	return l.app.RecordingHistory(ctx, limit)
}

func (l *local) SessionHistory(ctx context.Context, id string) (any, error) {
	return l.app.SessionRecord(ctx, id)
}

func (l *local) Close(ctx context.Context) error {
	err := l.app.Close(ctx)
	_ = l.logCls.Close()
	return err
}

func toClientSession(s flowcap.RecordingSession) client.RecordingSession {
	return client.RecordingSession{
		ID:         s.ID,
		Status:     string(s.Status),
		StartTime:  s.StartTime,
		Duration:   s.Duration,
		OutputPath: s.OutputPath,
		Error:      s.Error,
	}
}
