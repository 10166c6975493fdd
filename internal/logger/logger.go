package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days

	appLogName = "flowcap.log"
)

// Config describes the application log and where recorder output goes.
type Config struct {
	Level  string     `mapstructure:"level"`  // debug, info, warn, error
	Format string     `mapstructure:"format"` // text or json
	Color  bool       `mapstructure:"color"`  // ANSI level colors for text output
	File   FileConfig `mapstructure:"file"`
}

// FileConfig describes rotated log files.
// If StdoutPath/StderrPath are empty, and Dir is set, recorder output goes to
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Dir        string `mapstructure:"dir"`
	StdoutPath string `mapstructure:"stdout"`
	StderrPath string `mapstructure:"stderr"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SessionWriters returns rotating writers for a recorder's stdout and stderr.
// A stream without a destination is nil.
func (c Config) SessionWriters(id string) (io.WriteCloser, io.WriteCloser, error) {
	return c.File.SessionWriters(id)
}

// SessionWriters names the files after id when only Dir is set; id must not
// leave Dir.
func (f FileConfig) SessionWriters(id string) (stdout, stderr io.WriteCloser, err error) {
	outPath, errPath := f.StdoutPath, f.StderrPath
	if f.Dir != "" && (outPath == "" || errPath == "") {
		if id == "" || id != filepath.Base(id) || id == ".." {
			return nil, nil, fmt.Errorf("invalid log name %q", id)
		}
		if outPath == "" {
			outPath = filepath.Join(f.Dir, id+".stdout.log")
		}
		if errPath == "" {
			errPath = filepath.Join(f.Dir, id+".stderr.log")
		}
	}
	if outPath != "" {
		stdout = f.rotating(outPath)
	}
	if errPath != "" {
		stderr = f.rotating(errPath)
	}
	return stdout, stderr, nil
}

func (f FileConfig) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

// ParseLevel maps a level name to slog; unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the application logger writing to w, and additionally to
// Dir/flowcap.log when File.Dir is set. The returned closer releases the file.
func New(cfg Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	var closer io.Closer = nopCloser{}
	if cfg.File.Dir != "" {
		file := cfg.File.rotating(filepath.Join(cfg.File.Dir, appLogName))
		w = io.MultiWriter(w, file)
		closer = file
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		if cfg.Color {
			h = NewColorTextHandler(w, opts, true)
		} else {
			h = slog.NewTextHandler(w, opts)
		}
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), closer, nil
}

// Setup installs New's logger as the slog default.
func Setup(cfg Config, w io.Writer) (io.Closer, error) {
	l, closer, err := New(cfg, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
