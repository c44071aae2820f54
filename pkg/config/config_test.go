package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/roomcast/pkg/errors"
)

const testYAML = `
server:
  addr: ":9090"
  shutdown_timeout: 5s
ws:
  max_connections: 50
  allowed_origins:
    - https://a.example.com
    - https://b.example.com
`

func writeTestConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	assert.Equal(t, ":9090", c.GetString("server.addr"))
	assert.Equal(t, 5*time.Second, c.GetDuration("server.shutdown_timeout"))
	assert.Equal(t, 50, c.GetInt("ws.max_connections"))
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.GetStringSlice("ws.allowed_origins"))
	assert.Equal(t, cfgPath, c.ConfigFileUsed())
}

func TestLoadWithNameAndPaths(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "roomcast.yaml", testYAML)

	c := New(
		WithConfigName("roomcast"),
		WithConfigType("yaml"),
		WithConfigPaths(dir),
	)
	require.NoError(t, c.Load())
	assert.Equal(t, ":9090", c.GetString("server.addr"))
}

func TestLoadNotFound(t *testing.T) {
	c := New(WithConfigName("missing"), WithConfigPaths(t.TempDir()))
	err := c.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadOptional(t *testing.T) {
	c := New(
		WithConfigName("missing"),
		WithConfigPaths(t.TempDir()),
		WithOptional(true),
		WithDefaults(map[string]any{"server.addr": ":8080"}),
	)
	require.NoError(t, c.Load())
	assert.Equal(t, ":8080", c.GetString("server.addr"))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ROOMCAST_SERVER_ADDR", ":7070")

	c := New(
		WithEnvPrefix("ROOMCAST"),
		WithDefaults(map[string]any{"server.addr": ":8080"}),
	)
	require.NoError(t, c.Load())
	assert.Equal(t, ":7070", c.GetString("server.addr"))
}

func TestUnmarshal(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	var out struct {
		Server struct {
			Addr            string        `mapstructure:"addr"`
			ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		} `mapstructure:"server"`
	}
	require.NoError(t, c.Unmarshal(&out))
	assert.Equal(t, ":9090", out.Server.Addr)
	assert.Equal(t, 5*time.Second, out.Server.ShutdownTimeout)
}

func TestWatchOnChange(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	var changed atomic.Int32
	c := New(
		WithConfigFile(cfgPath),
		WithAutoWatch(true),
		WithOnChange(func() { changed.Add(1) }),
	)
	require.NoError(t, c.Load())
	defer c.Close()
	assert.True(t, c.IsWatching())

	// 等待 watcher 就绪后修改文件
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  addr: \":9191\"\n"), 0644))

	assert.Eventually(t, func() bool { return changed.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return c.GetString("server.addr") == ":9191" }, 3*time.Second, 20*time.Millisecond)

	c.StopWatch()
	assert.False(t, c.IsWatching())
}

func TestStartWatchWithoutFile(t *testing.T) {
	c := New()
	require.NoError(t, c.Load())
	assert.Error(t, c.StartWatch())
}
