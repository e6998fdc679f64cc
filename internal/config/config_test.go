package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-aqi-viz/pkg/imaging"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/provider"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "LOG_LEVEL", "APP_ENV", DefaultAPIKeyEnv} {
		t.Setenv(k, "")
	}
	DotEnvFile = filepath.Join(t.TempDir(), ".env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, provider.DefaultBaseURL, cfg.Provider.BaseURL)
	assert.Equal(t, provider.DefaultTimeout, cfg.Provider.Timeout)
	assert.Zero(t, cfg.Provider.CacheTTL)
	assert.Equal(t, int64(DefaultImagingSeed), cfg.Imaging.Seed)
	assert.Equal(t, imaging.DefaultMaxPixels, cfg.Imaging.MaxPixels)
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())

	table, err := cfg.Selector.Table()
	require.NoError(t, err)
	assert.Equal(t, viz.DefaultTable().Weights(models.StyleWaves), table.Weights(models.StyleWaves))
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
app_env: production
server:
  port: 9090
  max_upload_mb: 4
provider:
  base_url: http://localhost:1234/aqx
  timeout: 3s
  cache_ttl: 1m
  limit: 200
imaging:
  seed: 7
  workers: 2
  max_pixels: 1000000
selector:
  seed: 99
  weights:
    airflow: {color: 0.5, brightness: 0.25, contrast: 0.25}
    waves: {color: 0.5, brightness: 0.3, contrast: 0.2}
    blackhole: {color: 0.2, brightness: 0.6, contrast: 0.2}
archive:
  driver: sqlite3
  dsn: file:aqi.db
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(4<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 3*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, time.Minute, cfg.Provider.CacheTTL)
	assert.Equal(t, 200, cfg.Provider.Options().Limit)
	assert.Equal(t, int64(7), cfg.Imaging.Seed)
	assert.Equal(t, 2, cfg.Imaging.Workers)
	assert.Equal(t, int64(1000000), cfg.Imaging.MaxPixels)
	assert.Equal(t, int64(99), cfg.Selector.Seed)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())

	table, err := cfg.Selector.Table()
	require.NoError(t, err)
	assert.Equal(t, viz.Weights{Color: 0.2, Brightness: 0.6, Contrast: 0.2}, table.Weights(models.StyleBlackhole))
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("APP_ENV", "staging")
	t.Setenv(DefaultAPIKeyEnv, "secret")

	path := writeConfig(t, "server:\n  port: 9090\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, slog.LevelWarn, cfg.Log.SlogLevel())
	assert.Equal(t, "staging", cfg.AppEnv)
	assert.Equal(t, "secret", cfg.Provider.APIKey())
	assert.Equal(t, "secret", cfg.Provider.Options().APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("PORT"))
	require.NoError(t, os.WriteFile(DotEnvFile, []byte("PORT=4321\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PORT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4321, cfg.Server.Port)
}

func TestLoadCustomAPIKeyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AQI_TOKEN", "abc")

	cfg, err := Load(writeConfig(t, "provider:\n  api_key_env: AQI_TOKEN\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Provider.APIKey())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "port out of range", content: "server:\n  port: 70000\n"},
		{name: "bad PORT env", env: map[string]string{"PORT": "http"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "bad log format", content: "log:\n  format: xml\n"},
		{name: "negative cache ttl", content: "provider:\n  cache_ttl: -1s\n"},
		{name: "zero timeout", content: "provider:\n  timeout: 0s\n"},
		{name: "zero max pixels", content: "imaging:\n  max_pixels: 0\n"},
		{name: "unknown archive driver", content: "archive:\n  driver: mysql\n  dsn: x\n"},
		{name: "archive without dsn", content: "archive:\n  driver: postgres\n"},
		{name: "weights not summing to one", content: `
selector:
  weights:
    airflow: {color: 0.5, brightness: 0.5, contrast: 0.5}
    waves: {color: 0.5, brightness: 0.3, contrast: 0.2}
    blackhole: {color: 0.3, brightness: 0.4, contrast: 0.3}
`},
		{name: "weights missing a style", content: `
selector:
  weights:
    airflow: {color: 0.4, brightness: 0.3, contrast: 0.3}
`},
		{name: "malformed yaml", content: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchReloads(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 9000\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var port atomic.Int64
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			port.Store(int64(cfg.Server.Port))
		})
	}()

	// keep rewriting until the watcher is registered and picks a write up
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600)
		return port.Load() == 9100
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchKeepsConfigOnBadReload(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 9000\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() {
		_ = Watch(ctx, path, func(*Config) { calls.Add(1) })
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o600))
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
