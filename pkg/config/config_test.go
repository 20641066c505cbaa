package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDatabaseURL, EnvCacheDir, EnvUserAgent, EnvLogLevel, "FINSTAT_CONCURRENCY"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "finstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/db
log:
  level: debug
  json: true
edgar:
  user_agent: file-agent
  requests_per_second: 5
  timeout: 10s
pipeline:
  concurrency: 8
`), 0o644))

	t.Setenv(EnvUserAgent, "env-agent")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "env-agent", cfg.EDGAR.UserAgent)
	assert.Equal(t, 5.0, cfg.EDGAR.RequestsPerSecond)
	assert.Equal(t, 10*time.Second, cfg.EDGAR.Timeout)
	assert.Equal(t, 10, cfg.EDGAR.MaxRetries)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("FINSTAT_LOG_LEVEL=warn\n"), 0o644))
	// godotenv never overrides variables already present, even empty ones.
	require.NoError(t, os.Unsetenv(EnvLogLevel))
	t.Cleanup(func() { os.Unsetenv(EnvLogLevel) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadConcurrency(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINSTAT_CONCURRENCY", "many")
	_, err := Load("")
	assert.Error(t, err)
}
