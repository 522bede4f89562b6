package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "rightimpact.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 1, cfg.Match.Concurrency)
	assert.Equal(t, 30, cfg.Match.UnitTimeoutSecs)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 64, cfg.Queue.Buffer)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.10, cfg.Monitoring.FailureRateThreshold, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/rightimpact
log:
  level: debug
  format: console
match:
  concurrency: 4
queue:
  workers: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/rightimpact", cfg.Store.DatabaseURL)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Match.Concurrency)
	assert.Equal(t, 3, cfg.Queue.Workers)
	// Defaults still apply for unset values
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("RIGHTIMPACT_STORE_DRIVER", "postgres")
	t.Setenv("RIGHTIMPACT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RIGHTIMPACT_SERVER_PORT=3000\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RIGHTIMPACT_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func validConfig() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "test.db"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{Port: 8080},
		Match:  MatchConfig{Concurrency: 1},
		Queue:  QueueConfig{Workers: 1},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""
	cfg.Match.Concurrency = 0
	cfg.Queue.Workers = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "match.concurrency must be at least 1")
	assert.Contains(t, err.Error(), "queue.workers must be at least 1")
}

func TestValidate_FailureRateThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Monitoring.FailureRateThreshold = 1.5
	assert.ErrorContains(t, cfg.Validate(), "monitoring.failure_rate_threshold")
}

func TestValidate_PoolSizes(t *testing.T) {
	cfg := validConfig()
	cfg.Store.MaxConns = 2
	cfg.Store.MinConns = 5
	assert.ErrorContains(t, cfg.Validate(), "min_conns 5 exceeds max_conns 2")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
