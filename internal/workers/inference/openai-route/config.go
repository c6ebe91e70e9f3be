// internal/workers/inference/openai-route/config.go
package openairoute

import (
	"time"

	"inference-gateway/internal/common/config"
)

type Config struct {
	// JobTimeout bounds one Zeebe job end to end, admission wait included.
	JobTimeout time.Duration
	// StripDataPrefix emits streamed lines without their "data: " prefix.
	StripDataPrefix bool
	ChunkSize       int
	// CompleteRetries bounds transient retries of the complete command.
	CompleteRetries int
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		JobTimeout:      config.GetDuration(wc.Timeout),
		StripDataPrefix: cfg.Upstream.StripDataPrefix,
		ChunkSize:       4096,
		CompleteRetries: wc.MaxRetries,
	}
}
