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

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/events.json", cfg.Catalog.Path)
	assert.Equal(t, "data/archive.json", cfg.Catalog.ArchivePath)
	assert.Equal(t, "America/New_York", cfg.Catalog.Timezone)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 1000, cfg.Fetch.DelayMs)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.True(t, cfg.Sources.Parks.Enabled)
	assert.True(t, cfg.Sources.Farm.Enabled)
	assert.Empty(t, cfg.Sources.Museum.URL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/runs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 48, cfg.Monitoring.StaleAfterHours)
	assert.Equal(t, 3, cfg.Monitoring.DriftRuns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, time.Second, cfg.FetchDelay())
	assert.NoError(t, cfg.Validate(ScopeCatalog, ScopeFetch, ScopeStore, ScopeServer))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
catalog:
  path: out/events.json
sources:
  library:
    enabled: false
  museum:
    max_pages: 2
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "out/events.json", cfg.Catalog.Path)
	assert.False(t, cfg.Sources.Library.Enabled)
	assert.True(t, cfg.Sources.Parks.Enabled)
	assert.Equal(t, 2, cfg.Sources.Museum.MaxPages)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "data/archive.json", cfg.Catalog.ArchivePath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FAMEVENTS_STORE_DRIVER", "postgres")
	t.Setenv("FAMEVENTS_LOG_LEVEL", "warn")
	t.Setenv("FAMEVENTS_SOURCES_FARM_URL", "http://localhost:9999/farm")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "http://localhost:9999/farm", cfg.Sources.Farm.URL)
}

func TestLoadBrokenFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("catalog: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Catalog = CatalogConfig{Path: "events.json", ArchivePath: "archive.json", Timezone: "America/New_York"}
	cfg.Fetch = FetchConfig{TimeoutSecs: 30, MaxRetries: 3, Concurrency: 4}
	cfg.Store = StoreConfig{Driver: "sqlite", DatabaseURL: "runs.db"}
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateCatalog_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Catalog = CatalogConfig{Timezone: "Mars/Olympus_Mons"}

	err := cfg.Validate(ScopeCatalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.path is required")
	assert.Contains(t, err.Error(), "catalog.archive_path is required")
	assert.Contains(t, err.Error(), "catalog.timezone")
}

func TestValidateCatalog_SamePaths(t *testing.T) {
	cfg := validDefaults()
	cfg.Catalog.ArchivePath = cfg.Catalog.Path

	err := cfg.Validate(ScopeCatalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidateFetch(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.TimeoutSecs = 0
	cfg.Fetch.Concurrency = 40

	err := cfg.Validate(ScopeFetch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.timeout_secs must be > 0")
	assert.Contains(t, err.Error(), "fetch.concurrency must be between 1 and 16")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store = StoreConfig{Driver: "mysql"}

	err := cfg.Validate(ScopeStore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServer_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate(ScopeServer)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 9090
	assert.NoError(t, cfg.Validate(ScopeServer))
}

func TestValidateUnknownScope(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scope")
}

func TestLocation(t *testing.T) {
	cfg := validDefaults()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	cfg.Catalog.Timezone = ""
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
