package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "DB_DRIVER", "POLL_INTERVAL", "DEFAULT_START_DATE", "BATCH_SIZE", "SESSION_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, "1789-05-05", cfg.DefaultStartDate)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoad_DotenvAndEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("POLL_INTERVAL", "")
	require.NoError(t, os.Unsetenv("POLL_INTERVAL"))
	t.Setenv("BATCH_SIZE", "not-a-number")
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=7000\nPOLL_INTERVAL=10s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port, "the environment wins over the dotenv file")
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	assert.EqualError(t, cfg.ValidateServer(), "DB_DSN is not set")
	cfg.DBDSN = "file::memory:"
	assert.EqualError(t, cfg.ValidateServer(), "JWT_SECRET is not set")
	cfg.JWTSecret = "x"
	assert.NoError(t, cfg.ValidateServer())
}

func TestOpenDB(t *testing.T) {
	db, err := OpenDB("sqlite", "file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	_ = sqlDB.Close()

	_, err = OpenDB("oracle", "")
	assert.Error(t, err)
}
