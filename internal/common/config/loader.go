// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top, and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// UPSTREAM_BASE_URL overrides upstream.base_url, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindDefaults(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can see env-only values
// during Unmarshal.
func bindDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "inference-gateway")
	v.SetDefault("upstream.base_url", "http://127.0.0.1:5000")
	v.SetDefault("upstream.health_path", "/health")
	v.SetDefault("upstream.strip_data_prefix", false)
	v.SetDefault("camunda.enabled", true)
	v.SetDefault("camunda.broker_address", "")
	v.SetDefault("camunda.task_type", "openai-route")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.stats_enabled", false)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills values that are commonly supplied only through
// the container environment.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Upstream.BaseURL == "" {
		if val := os.Getenv("UPSTREAM_BASE_URL"); val != "" {
			cfg.Upstream.BaseURL = val
		}
	}
	if cfg.Camunda.BrokerAddress == "" {
		if val := os.Getenv("CAMUNDA_BROKER_ADDRESS"); val != "" {
			cfg.Camunda.BrokerAddress = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Upstream.HealthPath == "" {
		cfg.Upstream.HealthPath = "/health"
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 300000
	}
	if cfg.Upstream.ReadinessRetries == 0 {
		cfg.Upstream.ReadinessRetries = 1000
	}
	if cfg.Upstream.ReadinessDelay == 0 {
		cfg.Upstream.ReadinessDelay = 500
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = 100
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = 90000
	}

	if cfg.Camunda.TaskType == "" {
		cfg.Camunda.TaskType = "openai-route"
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = cfg.Upstream.Timeout + 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Concurrency.Window == 0 {
		cfg.Concurrency.Window = 60000
	}
	if cfg.Concurrency.RateThreshold == 0 {
		cfg.Concurrency.RateThreshold = 50
	}
	if cfg.Concurrency.MinLevel == 0 {
		cfg.Concurrency.MinLevel = 1
	}
	if cfg.Concurrency.MaxLevel == 0 {
		cfg.Concurrency.MaxLevel = 10
	}
	if cfg.Concurrency.InitialLevel == 0 {
		cfg.Concurrency.InitialLevel = cfg.Concurrency.MinLevel
	}
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = cfg.Concurrency.MaxLevel
	}

	if cfg.Database.Redis.StatsPrefix == "" {
		cfg.Database.Redis.StatsPrefix = "gateway:admission"
	}
	if cfg.Database.Redis.StatsTTL == 0 {
		cfg.Database.Redis.StatsTTL = 24 * 60 * 60 * 1000
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Concurrency.MaxLevel
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if u, err := url.Parse(cfg.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", cfg.Upstream.BaseURL)
	}
	if !strings.HasPrefix(cfg.Upstream.HealthPath, "/") {
		return fmt.Errorf("upstream.health_path must start with '/'")
	}

	if cfg.Concurrency.MinLevel < 1 {
		return fmt.Errorf("concurrency.min_level must be >= 1")
	}
	if cfg.Concurrency.MaxLevel < cfg.Concurrency.MinLevel {
		return fmt.Errorf("concurrency.max_level must be >= concurrency.min_level")
	}
	if cfg.Concurrency.InitialLevel < cfg.Concurrency.MinLevel || cfg.Concurrency.InitialLevel > cfg.Concurrency.MaxLevel {
		return fmt.Errorf("concurrency.initial_level must be within [min_level, max_level]")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled is true")
	}

	if cfg.Database.Redis.StatsEnabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when stats_enabled is true")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
