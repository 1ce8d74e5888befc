package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsFillMissingSections(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9984", cfg.App.HTTPAddr)
	assert.Equal(t, "data/omerta.db", cfg.Storage.DBPath)
	assert.Equal(t, 365, cfg.Storage.RetentionDays)
	assert.Equal(t, "binance", cfg.Market.Source)
	assert.Equal(t, "1h", cfg.Market.SnapshotInterval)
	assert.Equal(t, 3, cfg.Feedback.HorizonDays)
	assert.Equal(t, 1, cfg.Feedback.EvalDelayDays)
	assert.Equal(t, 24.0, cfg.Feedback.ToleranceBaselineHours)
	assert.Equal(t, 5.0, cfg.Feedback.BuyOKThreshold)
	assert.Equal(t, -5.0, cfg.Feedback.SellOKThreshold)
	assert.Equal(t, 5.0, cfg.Feedback.HoldBand)
	assert.Equal(t, 7, cfg.Feedback.MaxRetry)
	assert.Equal(t, 30, cfg.Learning.StatsWindowDays)
}

func TestLoad_ExplicitEmptyDBPathSurvivesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  db_path: ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Storage.DBPath, "an explicit empty path selects the in-memory store")
}

func TestLoad_RejectsUnknownMarketSource(t *testing.T) {
	path := writeConfig(t, `
market:
  source: kraken
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.source")
}

func TestLoad_RejectsBadInterval(t *testing.T) {
	path := writeConfig(t, `
feedback:
  interval: often
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feedback.interval")
}

func TestLoad_RejectsPositiveSellThreshold(t *testing.T) {
	path := writeConfig(t, `
feedback:
  sell_ok_threshold: 5.0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sell_ok_threshold")
}

func TestLoad_TelegramRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
notify:
  telegram:
    enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
