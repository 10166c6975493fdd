// Package config loads flowcap settings from an optional TOML file with
// FLOWCAP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/flowcap/internal/cron"
	"github.com/loykin/flowcap/internal/logger"
	"github.com/loykin/flowcap/internal/metrics"
	"github.com/loykin/flowcap/internal/recording"
)

// EnvPrefix namespaces environment overrides, e.g. FLOWCAP_SERVER_LISTEN.
const EnvPrefix = "FLOWCAP"

// Config is the top-level TOML structure.
type Config struct {
	// Env is applied on top of the OS environment for every child process.
	Env      []string `mapstructure:"env"`
	EnvFiles []string `mapstructure:"env_files"`
	// Dir overrides the directory the project root is resolved from.
	Dir      string           `mapstructure:"dir"`
	Server   ServerConfig     `mapstructure:"server"`
	Log      logger.Config    `mapstructure:"log"`
	Recorder recording.Config `mapstructure:"recorder"`
	Store    StoreConfig      `mapstructure:"store"`
	History  HistoryConfig    `mapstructure:"history"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

// StoreConfig selects the session history database. An empty DSN disables it.
// Rows older than Retention are purged at startup and then on PurgeSchedule.
type StoreConfig struct {
	DSN           string        `mapstructure:"dsn"`
	Retention     time.Duration `mapstructure:"retention"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
}

// HistoryConfig lists event sink DSNs (clickhouse://, opensearch://, postgres://, sqlite://).
type HistoryConfig struct {
	Sinks []string `mapstructure:"sinks"`
}

type MetricsConfig struct {
	Enabled bool                  `mapstructure:"enabled"`
	Listen  string                `mapstructure:"listen"`
	Sampler metrics.SamplerConfig `mapstructure:"sampler"`
}

var defaults = map[string]any{
	"env":                         []string{},
	"env_files":                   []string{},
	"dir":                         "",
	"server.listen":               "127.0.0.1:7878",
	"server.base_path":            "/api",
	"log.level":                   "info",
	"log.format":                  "text",
	"log.color":                   false,
	"log.file.dir":                "",
	"log.file.max_size_mb":        logger.DefaultMaxSizeMB,
	"log.file.max_backups":        logger.DefaultMaxBackups,
	"log.file.max_age_days":       logger.DefaultMaxAgeDays,
	"log.file.compress":           false,
	"recorder.package_manager":    recording.DefaultPackageManager,
	"recorder.runner":             recording.DefaultRunner,
	"recorder.entry":              recording.DefaultEntry,
	"recorder.output_dir":         recording.DefaultOutputDir,
	"recorder.stop_grace":         recording.DefaultStopGrace,
	"recorder.log.dir":            recording.DefaultLogDir,
	"recorder.log.max_size_mb":    logger.DefaultMaxSizeMB,
	"recorder.log.max_backups":    logger.DefaultMaxBackups,
	"recorder.log.max_age_days":   logger.DefaultMaxAgeDays,
	"store.dsn":                   "",
	"store.retention":             time.Duration(0),
	"store.purge_schedule":        "@every 1h",
	"history.sinks":               []string{},
	"metrics.enabled":             false,
	"metrics.listen":              "",
	"metrics.sampler.enabled":     false,
	"metrics.sampler.interval":    5 * time.Second,
	"metrics.sampler.max_history": 60,
}

// Default returns the configuration used when no file is given. Environment
// overrides still apply.
func Default() Config {
	c, _ := load(newViper())
	return c
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (TOML) when it is non-empty and applies environment
// overrides on top.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	c, err := load(v)
	if err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = append(errs, fmt.Errorf("server.base_path must start with /, got %q", c.Server.BasePath))
	}
	if c.Store.Retention < 0 {
		errs = append(errs, errors.New("store.retention must not be negative"))
	}
	if c.Store.PurgeSchedule != "" {
		if _, err := cron.ParseEvery(c.Store.PurgeSchedule); err != nil {
			errs = append(errs, fmt.Errorf("store.purge_schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GlobalEnv merges env_files in order and then env, later keys winning.
func (c Config) GlobalEnv() ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			set(kv[0], kv[1])
		}
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			set(kv[:i], kv[i+1:])
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// LoadEnvFile parses a simple .env file and returns "KEY=VALUE" entries in file order.
func LoadEnvFile(path string) ([]string, error) {
	pairs, err := loadEnvFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		out = append(out, kv[0]+"="+kv[1])
	}
	return out, nil
}

// loadEnvFile parses KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) ([][2]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, [2]string{strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])})
		}
	}
	return out, nil
}
