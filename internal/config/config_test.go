package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DATABASE", "settings")
	t.Setenv("DB_APP_USER", "settings_app")
	t.Setenv("AUTHZ_URL", "http://localhost:8080")
	t.Setenv("AUTHZ_CLIENT_ID", "client")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBType)
	assert.Equal(t, 5, cfg.DBAppConnectionLimit)
	assert.Equal(t, "auto", cfg.DBMigrate)
	assert.Equal(t, "redis", cfg.CacheType)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_TYPE", "memory")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DB_APP_CONNECTION_LIMIT", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.CacheType)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 12, cfg.DBAppConnectionLimit)
}

func TestLoadRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTHZ_CLIENT_ID", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AUTHZ_CLIENT_ID")
}

func TestLoadSqliteNeedsNoUser(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_APP_USER", "")

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	setRequired(t)
	t.Setenv("CACHE_TYPE", "memcached")
	_, err := Load()
	assert.ErrorContains(t, err, "CACHE_TYPE")

	t.Setenv("CACHE_TYPE", "memory")
	t.Setenv("DB_MIGRATE", "manual")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_MIGRATE")
}

func TestLoadBadInteger(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_ADDR=cache:6380\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("REDIS_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
}
