package di

import (
	"context"
	"path/filepath"
	"testing"

	"rhealth-backend/domain/patient"
	"rhealth-backend/infrastructure/config"
	"rhealth-backend/infrastructure/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.StoreDriver = config.StoreMemory
	cfg.LogLevel = "error"
	return cfg
}

func TestInitializeContainer_Memory(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableMetrics = true

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, c.Server)
	assert.NotNil(t, c.Dispatcher)
	assert.NotNil(t, c.Metrics)
	assert.IsType(t, messaging.NoopPublisher{}, c.Publisher)

	p, err := c.Store.Insert(context.Background(), patient.Fields{Name: "A", Age: patient.Int(1), Gender: "F"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
}

func TestInitializeContainer_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "rhealth.db")

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	roster, err := c.Store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, roster)
	assert.Nil(t, c.Metrics)
}

func TestInitializeContainer_AuthRequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthEnabled = true

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestContainer_ApplyDynamicConfig(t *testing.T) {
	c, cleanup, err := InitializeContainer(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer cleanup()

	c.ApplyDynamicConfig(&config.DynamicConfig{LogLevel: "debug", MaxConnections: 0})
	assert.Equal(t, "debug", c.LogLevel.Level().String())
	require.True(t, c.Hub.Admit(), "a zero cap admits everyone")
	c.Hub.Release()

	c.ApplyDynamicConfig(&config.DynamicConfig{LogLevel: "info", MaxConnections: 1})
	require.True(t, c.Hub.Admit())
	assert.False(t, c.Hub.Admit())
	c.Hub.Release()
}
