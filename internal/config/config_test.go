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

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "nichewatch.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.True(t, cfg.Crawl.Headless)
	assert.Equal(t, 100, cfg.Crawl.MaxProducts)
	assert.Equal(t, 200, cfg.Crawl.MaxScrollAttempts)

	assert.Equal(t, 60, cfg.Rate.CategoryDelaySecs)
	assert.Equal(t, 30, cfg.Rate.SubcategoryDelaySecs)
	assert.Equal(t, 300, cfg.Rate.FailureCooldownSecs)
	assert.InDelta(t, 4.0, cfg.Rate.MaxMultiplier, 0.001)

	assert.Equal(t, 5, cfg.Worker.ConsecutiveFatalLimit)
	assert.Equal(t, "artifacts", cfg.Worker.ArtifactDir)

	assert.InDelta(t, 0.35, cfg.Scoring.Weights.Velocity, 0.001)
	assert.InDelta(t, 0.10, cfg.Scoring.Weights.SaturationPenalty, 0.001)
	assert.Equal(t, 4, cfg.Scoring.Novelty.MinTokenLength)
	assert.Contains(t, cfg.Scoring.Copyability.FormatKeywords, "notion")

	assert.Equal(t, 12, cfg.Alerts.SpikeRatingDelta)
	assert.Equal(t, 50, cfg.Alerts.SpikeSalesDelta)
	assert.InDelta(t, 0.25, cfg.Alerts.PricePctMove, 0.001)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/nichewatch
log:
  level: debug
  format: console
rate:
  category_delay_secs: 90
scoring:
  weights:
    velocity: 0.5
    copyability: 0.2
    novelty: 0.1
    price_to_value: 0.1
    saturation_penalty: 0.1
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 90, cfg.Rate.CategoryDelaySecs)
	assert.InDelta(t, 0.5, cfg.Scoring.Weights.Velocity, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Rate.SubcategoryDelaySecs)
	assert.Equal(t, 100, cfg.Crawl.MaxProducts)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	t.Setenv("NICHEWATCH_STORE_DRIVER", "postgres")
	t.Setenv("NICHEWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("NICHEWATCH_WORKER_CONSECUTIVE_FATAL_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Worker.ConsecutiveFatalLimit)
}

func TestValidate(t *testing.T) {
	chtemp(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Store.Driver = "mysql"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")

	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = ""
	require.Error(t, cfg.Validate())

	cfg.Store.DatabaseURL = "nichewatch.db"
	cfg.Scoring.Weights.Velocity = -1
	require.Error(t, cfg.Validate())
}

func TestSectionMappers(t *testing.T) {
	chtemp(t)
	cfg, err := Load()
	require.NoError(t, err)

	rc := cfg.Rate.ControllerConfig()
	assert.Equal(t, 60*time.Second, rc.CategoryDelay)
	assert.Equal(t, 5*time.Second, rc.JitterMin)

	eo := cfg.Crawl.EngineOptions()
	assert.Equal(t, 100, eo.MaxProducts)
	assert.Equal(t, 2*time.Second, eo.SettleWait)

	bo := cfg.Crawl.BrowserOptions()
	assert.True(t, bo.Headless)
	assert.Equal(t, 45*time.Second, bo.NavTimeout)
	assert.NotEmpty(t, bo.UserAgent)
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
