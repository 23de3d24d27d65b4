package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestLoadConfig tests basic configuration loading from environment variables.
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_MetricsOptIn(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.EnableMetrics)

	t.Setenv("ENABLE_METRICS", "true")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhealth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storeDriver: memory
logLevel: debug
websocket:
  sendBufferSize: 32
  pongWait: 15s
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 32, cfg.WebSocket.SendBufferSize)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PongWait)
	// env wins over the file
	assert.Equal(t, "warn", cfg.LogLevel)
	// untouched values keep their defaults
	assert.Equal(t, 1024, cfg.WebSocket.EventQueueSize)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.StoreDriver = "postgres" },
			wantErr: "unknown STORE_DRIVER",
		},
		{
			name:    "auth without secret",
			mutate:  func(c *Config) { c.AuthEnabled = true },
			wantErr: "JWT_SECRET",
		},
		{
			name:    "production without auth",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: "ENABLE_AUTH",
		},
		{
			name: "production with auth",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.AuthEnabled = true
				c.JWTSecret = "s3cret"
			},
		},
		{
			name:    "zero send buffer",
			mutate:  func(c *Config) { c.WebSocket.SendBufferSize = 0 },
			wantErr: "sendBufferSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhealth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\nwebsocket:\n  maxConnections: 10\n"), 0o644))

	w, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	changed := make(chan DynamicConfig, 1)
	w.OnChange(func(c *DynamicConfig) { changed <- *c })
	w.Start()
	defer w.Stop()

	assert.Equal(t, DynamicConfig{LogLevel: "info", MaxConnections: 10}, w.GetCurrent())

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nwebsocket:\n  maxConnections: 3\n"), 0o644))

	select {
	case got := <-changed:
		assert.Equal(t, "debug", got.LogLevel)
		assert.Equal(t, 3, got.MaxConnections)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
	assert.Equal(t, "debug", w.GetCurrent().LogLevel)
}

func TestConfigWatcher_RejectsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhealth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n"), 0o644))

	w, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logLevel: loud\n"), 0o644))
	w.handleConfigChange()

	assert.Equal(t, "info", w.GetCurrent().LogLevel)
}

func TestConfigWatcher_ReloadKeepsEnvironment(t *testing.T) {
	t.Setenv("WS_MAX_CONNECTIONS", "5")
	t.Setenv("LOG_LEVEL", "warn")
	path := filepath.Join(t.TempDir(), "rhealth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n"), 0o644))

	w, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()
	assert.Equal(t, DynamicConfig{LogLevel: "warn", MaxConnections: 5}, w.GetCurrent())

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\n"), 0o644))
	w.handleConfigChange()

	assert.Equal(t, DynamicConfig{LogLevel: "warn", MaxConnections: 5}, w.GetCurrent())
}

func TestConfigWatcher_ReloadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhealth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n"), 0o644))

	w, err := NewConfigWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\n"), 0o644))
	w.handleConfigChange()

	got := w.GetCurrent()
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, Defaults().WebSocket.MaxConnections, got.MaxConnections, "keys missing from the file keep their defaults")
}
