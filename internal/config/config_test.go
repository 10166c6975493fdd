package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7878", c.Server.Listen)
	assert.Equal(t, "/api", c.Server.BasePath)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
	assert.Equal(t, "pnpm", c.Recorder.PackageManager)
	assert.Equal(t, "tsx", c.Recorder.Runner)
	assert.Equal(t, "src/cli.ts", c.Recorder.Entry)
	assert.Equal(t, "recordings", c.Recorder.OutputDir)
	assert.Equal(t, "logs", c.Recorder.Log.Dir)
	assert.Equal(t, 3*time.Second, c.Recorder.StopGrace)
	assert.Empty(t, c.Store.DSN)
	assert.Equal(t, "@every 1h", c.Store.PurgeSchedule)
	assert.Empty(t, c.History.Sinks)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, 5*time.Second, c.Metrics.Sampler.Interval)
	assert.Equal(t, 60, c.Metrics.Sampler.MaxHistory)

	assert.Equal(t, c, Default())
}

func TestLoadFromTOML(t *testing.T) {
	p := writeFile(t, "flowcap.toml", `
env = ["DEBUG=pw:api"]
dir = "/work/figma-flow-capture"

[server]
listen = ":9000"
base_path = "/v1"

[log]
level = "debug"
format = "json"
  [log.file]
  dir = "/var/log/flowcap"
  max_size_mb = 50

[recorder]
package_manager = "npm"
output_dir = "/data/recordings"
stop_grace = "750ms"
  [recorder.log]
  dir = ""

[store]
dsn = "sqlite:///tmp/flowcap.db"
retention = "720h"

[history]
sinks = ["opensearch://localhost:9200/flowcap", "sqlite://:memory:"]

[metrics]
enabled = true
listen = ":9100"
  [metrics.sampler]
  enabled = true
  interval = "2s"
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEBUG=pw:api"}, c.Env)
	assert.Equal(t, "/work/figma-flow-capture", c.Dir)
	assert.Equal(t, ":9000", c.Server.Listen)
	assert.Equal(t, "/v1", c.Server.BasePath)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, "/var/log/flowcap", c.Log.File.Dir)
	assert.Equal(t, 50, c.Log.File.MaxSizeMB)
	assert.Equal(t, 3, c.Log.File.MaxBackups)
	assert.Equal(t, "npm", c.Recorder.PackageManager)
	assert.Equal(t, "tsx", c.Recorder.Runner)
	assert.Equal(t, "/data/recordings", c.Recorder.OutputDir)
	assert.Equal(t, 750*time.Millisecond, c.Recorder.StopGrace)
	assert.Empty(t, c.Recorder.Log.Dir)
	assert.Equal(t, "sqlite:///tmp/flowcap.db", c.Store.DSN)
	assert.Equal(t, 720*time.Hour, c.Store.Retention)
	assert.Equal(t, []string{"opensearch://localhost:9200/flowcap", "sqlite://:memory:"}, c.History.Sinks)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, ":9100", c.Metrics.Listen)
	assert.True(t, c.Metrics.Sampler.Enabled)
	assert.Equal(t, 2*time.Second, c.Metrics.Sampler.Interval)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "c.toml", "[server]\nlisten = \":9000\"\n")
	t.Setenv("FLOWCAP_SERVER_LISTEN", "127.0.0.1:1234")
	t.Setenv("FLOWCAP_RECORDER_OUTPUT_DIR", "clips")
	t.Setenv("FLOWCAP_STORE_DSN", "postgres://u:p@db/flowcap")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1234", c.Server.Listen)
	assert.Equal(t, "clips", c.Recorder.OutputDir)
	assert.Equal(t, "postgres://u:p@db/flowcap", c.Store.DSN)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	p := writeFile(t, "bad.toml", "[log]\nformat = \"xml\"\n")
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")

	p = writeFile(t, "bad2.toml", "[server]\nbase_path = \"api\"\n")
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_path")

	p = writeFile(t, "bad3.toml", "[store]\npurge_schedule = \"0 * * * *\"\n")
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.purge_schedule")

	p = writeFile(t, "broken.toml", "[server\n")
	_, err = Load(p)
	assert.Error(t, err)
}

func TestLoadEnvFileAndGlobalEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", "A=1\n#comment\nB=two\n\nnot-a-pair\n")
	pairs, err := LoadEnvFile(dotenv)
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=two"}, pairs)

	c := Config{EnvFiles: []string{dotenv}, Env: []string{"B=three", "C=4", "=skipped"}}
	got, err := c.GlobalEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=three", "C=4"}, got)

	_, err = LoadEnvFile("/definitely/not/exist.env")
	assert.Error(t, err)
	_, err = Config{EnvFiles: []string{"/definitely/not/exist.env"}}.GlobalEnv()
	assert.Error(t, err)
}
