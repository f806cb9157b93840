package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/config"
)

func TestLoadGateway_Defaults(t *testing.T) {
	cfg, err := config.LoadGateway("test", nil)

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 25, cfg.Allocation)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadGateway_EnvThenFlags(t *testing.T) {
	t.Setenv("LEAVE_ADDR", ":9000")
	t.Setenv("LEAVE_ALLOCATION", "30")
	t.Setenv("LEAVE_ALLOWED_ORIGINS", " https://a.test , https://b.test ")

	cfg, err := config.LoadGateway("test", []string{"-addr", ":9100", "-session-ttl", "15m"})

	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 30, cfg.Allocation)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
}

func TestLoadGateway_Invalid(t *testing.T) {
	t.Setenv("LEAVE_ALLOCATION", "lots")
	_, err := config.LoadGateway("test", nil)
	assert.Error(t, err)

	t.Setenv("LEAVE_ALLOCATION", "-1")
	_, err = config.LoadGateway("test", nil)
	assert.Error(t, err)
}

func TestLoadMockBackend_RequiresSecret(t *testing.T) {
	t.Setenv("MOCK_JWT_SECRET", "")
	_, err := config.LoadMockBackend("test", nil)
	assert.Error(t, err)

	cfg, err := config.LoadMockBackend("test", []string{"-jwt-secret", "s3cret", "-db", ":memory:", "-seed=false", "-scenario", "approval-backlog"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.False(t, cfg.Seed)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "approval-backlog", cfg.Scenario)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEAVE_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("LEAVE_TEST_DOTENV", "")
	os.Unsetenv("LEAVE_TEST_DOTENV")

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "from-file", os.Getenv("LEAVE_TEST_DOTENV"))
}
