package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: http://127.0.0.1:5000
camunda:
  enabled: false
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/health", cfg.Upstream.HealthPath)
	assert.Equal(t, 300*time.Second, cfg.UpstreamTimeout())
	assert.Equal(t, 1000, cfg.Upstream.ReadinessRetries)
	assert.Equal(t, 500, cfg.Upstream.ReadinessDelay)
	assert.Equal(t, time.Minute, cfg.ConcurrencyWindow())
	assert.Equal(t, 50, cfg.Concurrency.RateThreshold)
	assert.Equal(t, 1, cfg.Concurrency.MinLevel)
	assert.Equal(t, 10, cfg.Concurrency.MaxLevel)
	assert.Equal(t, 1, cfg.Concurrency.InitialLevel)
	assert.Equal(t, "openai-route", cfg.Camunda.TaskType)
	assert.Equal(t, 10, cfg.Camunda.MaxJobsActive)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_UPSTREAM_HOST", "inference.local:9000")
	path := writeConfig(t, `
upstream:
  base_url: http://${TEST_UPSTREAM_HOST}
camunda:
  enabled: false
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://inference.local:9000", cfg.Upstream.BaseURL)
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://10.0.0.5:5000")
	path := writeConfig(t, `
upstream:
  base_url: http://127.0.0.1:5000
camunda:
  enabled: false
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:5000", cfg.Upstream.BaseURL)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Upstream: UpstreamConfig{BaseURL: "http://127.0.0.1:5000"},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"relative base url", func(c *Config) { c.Upstream.BaseURL = "localhost" }, "absolute URL"},
		{"bad health path", func(c *Config) { c.Upstream.HealthPath = "health" }, "health_path"},
		{"max below min", func(c *Config) { c.Concurrency.MaxLevel = 0; c.Concurrency.MinLevel = 2 }, "max_level"},
		{"initial out of range", func(c *Config) { c.Concurrency.InitialLevel = 11 }, "initial_level"},
		{"camunda without broker", func(c *Config) { c.Camunda.Enabled = true }, "broker_address"},
		{"stats without redis", func(c *Config) { c.Database.Redis.StatsEnabled = true }, "redis.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Upstream: UpstreamConfig{BaseURL: "http://x:1"}}
	applyDefaults(cfg)

	wc := GetWorkerConfig(cfg, "openai-route")
	assert.True(t, wc.Enabled)
	assert.Equal(t, cfg.Camunda.MaxJobsActive, wc.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "openai-route"))
}
