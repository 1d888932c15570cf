package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults apply without a config file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":5600", cfg.StatusAddress)
		assert.Equal(t, "rms-sync.db", cfg.DatabasePath)
		assert.Equal(t, 5, cfg.Sync.MaxAttempts)
		assert.Contains(t, cfg.Live.Tables, "orders")
		assert.False(t, cfg.UsePostgres())
	})

	t.Run("config file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rms-sync.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"statusAddress": ":7700",
			"tenantId": "tenant-x",
			"sync": {"drainIntervalSeconds": 10, "maxAttempts": 3}
		}`), 0o644))
		t.Setenv("CONFIG_PATH", path)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":7700", cfg.StatusAddress)
		assert.Equal(t, "tenant-x", cfg.TenantID)
		assert.Equal(t, 10*time.Second, cfg.DrainInterval())
		assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rms-sync.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tenantId": "from-file"}`), 0o644))
		t.Setenv("CONFIG_PATH", path)
		t.Setenv("TENANT_ID", "from-env")
		t.Setenv("DATABASE_URL", "postgres://localhost/rms")
		t.Setenv("SYNC_MAX_ATTEMPTS", "7")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.TenantID)
		assert.Equal(t, 7, cfg.Sync.MaxAttempts)
		assert.True(t, cfg.UsePostgres())
	})

	t.Run("malformed config file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rms-sync.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
		t.Setenv("CONFIG_PATH", path)

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("invalid numeric env values are ignored", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
		t.Setenv("SYNC_MAX_ATTEMPTS", "zero")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	})
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 30*time.Second, cfg.DrainInterval())
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval())
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 10*time.Second, cfg.ConfirmWindow())
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
}
