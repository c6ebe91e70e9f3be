// internal/common/http/readiness.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"inference-gateway/internal/common/errors"
	"inference-gateway/internal/common/logger"
)

// ReadinessConfig controls the startup probe.
type ReadinessConfig struct {
	Path         string
	MaxAttempts  int
	Delay        time.Duration
	ProbeTimeout time.Duration
}

// WaitForReady polls GET <base><path> until it answers 200. Exhausting the
// attempt budget returns READINESS_EXHAUSTED, which is fatal at startup.
func (c *Client) WaitForReady(ctx context.Context, cfg ReadinessConfig, log logger.Logger) error {
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1000
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	limiter := rate.NewLimiter(rate.Every(cfg.Delay), 1)
	url := c.baseURL + cfg.Path

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("readiness wait cancelled after %d attempts: %w", attempt-1, err)
		}

		lastErr = c.probe(ctx, url, cfg.ProbeTimeout)
		if lastErr == nil {
			log.Info("Upstream is ready", map[string]interface{}{
				"url":      url,
				"attempts": attempt,
			})
			return nil
		}

		log.Debug("Upstream not ready", map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"error":   lastErr,
		})
	}

	return errors.NewReadinessExhaustedError(url, cfg.MaxAttempts, lastErr)
}

// Check issues one GET <base><path> and reports whether it answered 200. It
// backs the /ready endpoint and does not log.
func (c *Client) Check(ctx context.Context, path string, timeout time.Duration) error {
	if path == "" {
		path = "/health"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return c.probe(ctx, c.baseURL+path, timeout)
}

func (c *Client) probe(ctx context.Context, url string, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
