package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "a missing config file falls back to defaults")

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "claude", cfg.Analyzer.Provider)
	assert.Equal(t, 60, cfg.Signal.CacheBucketSeconds)
	assert.Equal(t, 300, cfg.Signal.LockLeaseSeconds)
	assert.Equal(t, 4, cfg.Signal.Rules.BuyThreshold)
	assert.InDelta(t, 12, cfg.Signal.Rules.ConfidenceStep, 1e-9)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
  format: console
analyzer:
  provider: openai
  model: gpt-4o
signal:
  cache_bucket_seconds: 30
  rules:
    buy_threshold: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "openai", cfg.Analyzer.Provider)
	assert.Equal(t, "gpt-4o", cfg.Analyzer.Model)
	assert.Equal(t, 30, cfg.Signal.CacheBucketSeconds)
	assert.Equal(t, 5, cfg.Signal.Rules.BuyThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 300, cfg.Signal.LockLeaseSeconds)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoadRejectsInvalidProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analyzer:\n  provider: crystalball\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("ANALYZER_API_KEY", "sk-test")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Analyzer.APIKey)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
}

func TestDerivedConfigs(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	oc := cfg.Signal.Orchestrator()
	assert.Equal(t, time.Minute, oc.CacheBucket)
	assert.Equal(t, 5*time.Minute, oc.LockLease)
	assert.Equal(t, 2*time.Second, oc.LockWait)

	cc := cfg.Analyzer.Client()
	assert.Equal(t, 90*time.Second, cc.Timeout)
}
