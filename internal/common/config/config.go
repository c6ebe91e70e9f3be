// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Upstream    UpstreamConfig          `mapstructure:"upstream"`
	Camunda     CamundaConfig           `mapstructure:"camunda"`
	Concurrency ConcurrencyConfig       `mapstructure:"concurrency"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Server      ServerConfig            `mapstructure:"server"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	Logging     LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// UpstreamConfig describes the local inference server.
type UpstreamConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	HealthPath       string `mapstructure:"health_path"`
	Timeout          int    `mapstructure:"timeout"`           // milliseconds
	ReadinessRetries int    `mapstructure:"readiness_retries"` // attempts before startup aborts
	ReadinessDelay   int    `mapstructure:"readiness_delay"`   // milliseconds
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	IdleConnTimeout  int    `mapstructure:"idle_conn_timeout"` // milliseconds
	StripDataPrefix  bool   `mapstructure:"strip_data_prefix"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	TaskType       string `mapstructure:"task_type"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// ConcurrencyConfig tunes the adaptive admission controller.
type ConcurrencyConfig struct {
	Window        int `mapstructure:"window"` // milliseconds
	RateThreshold int `mapstructure:"rate_threshold"`
	MinLevel      int `mapstructure:"min_level"`
	MaxLevel      int `mapstructure:"max_level"`
	InitialLevel  int `mapstructure:"initial_level"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	StatsEnabled bool   `mapstructure:"stats_enabled"`
	StatsPrefix  string `mapstructure:"stats_prefix"`
	StatsTTL     int    `mapstructure:"stats_ttl"` // milliseconds
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// UpstreamTimeout returns the per-call upstream deadline.
func (c *Config) UpstreamTimeout() time.Duration {
	return GetDuration(c.Upstream.Timeout)
}

// ConcurrencyWindow returns the sliding arrival window.
func (c *Config) ConcurrencyWindow() time.Duration {
	return GetDuration(c.Concurrency.Window)
}
