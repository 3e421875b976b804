package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	// A named but missing file is an error; no path falls back to defaults
	assert.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, "StratEvolve", cfg.App.Name)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 50, cfg.Optimizer.PopulationSize)
	assert.Equal(t, "csv", cfg.Market.Source)
	assert.Equal(t, "BTCUSDT", cfg.Market.Symbol)
	assert.Equal(t, 8081, cfg.API.Port)
	assert.True(t, cfg.Monitoring.EnableMetrics)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  name: custom
  log_level: debug
optimizer:
  population_size: 12
  generations: 3
  workers: 4
market:
  source: binance
  symbol: ETHUSDT
  interval: 15m
api:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom", cfg.App.Name)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 12, cfg.Optimizer.PopulationSize)
	assert.Equal(t, 3, cfg.Optimizer.Generations)
	assert.Equal(t, 4, cfg.Optimizer.Workers)
	assert.Equal(t, "binance", cfg.Market.Source)
	assert.Equal(t, "ETHUSDT", cfg.Market.Symbol)
	assert.Equal(t, 9090, cfg.API.Port)
	// Untouched sections keep their defaults
	assert.Equal(t, 0.8, cfg.Optimizer.CrossoverRate)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad market source", "market:\n  source: carrier_pigeon\n"},
		{"bad optimizer", "optimizer:\n  population_size: 1\n"},
		{"bad api port", "api:\n  port: -1\n"},
		{"empty symbol", "market:\n  symbol: \"\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
