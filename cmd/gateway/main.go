// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inference-gateway/internal/common/camunda"
	"inference-gateway/internal/common/concurrency"
	"inference-gateway/internal/common/config"
	"inference-gateway/internal/common/database"
	commonhttp "inference-gateway/internal/common/http"
	"inference-gateway/internal/common/logger"
	"inference-gateway/internal/common/observability"
	"inference-gateway/internal/server"
	openairoute "inference-gateway/internal/workers/inference/openai-route"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting inference gateway...",
		zap.String("version", cfg.App.Version),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name, nil)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("observability shutdown failed", zap.Error(err))
		}
	}()

	// --- Upstream ---
	upstream := commonhttp.NewClient(commonhttp.ClientConfig{
		BaseURL:         cfg.Upstream.BaseURL,
		Timeout:         cfg.UpstreamTimeout(),
		MaxIdleConns:    cfg.Upstream.MaxIdleConns,
		IdleConnTimeout: config.GetDuration(cfg.Upstream.IdleConnTimeout),
	})
	defer upstream.Close()

	readiness := commonhttp.ReadinessConfig{
		Path:        cfg.Upstream.HealthPath,
		MaxAttempts: cfg.Upstream.ReadinessRetries,
		Delay:       config.GetDuration(cfg.Upstream.ReadinessDelay),
	}
	if err := upstream.WaitForReady(ctx, readiness, log); err != nil {
		zapLog.Fatal("upstream never became ready", zap.Error(err))
	}

	// --- Admission stats (optional) ---
	var stats concurrency.StatsStore
	if cfg.Database.Redis.StatsEnabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		stats = concurrency.NewRedisStatsStore(rdb.GetClient(),
			concurrency.WithStatsPrefix(cfg.Database.Redis.StatsPrefix),
			concurrency.WithStatsTTL(config.GetDuration(cfg.Database.Redis.StatsTTL)),
		)
		zapLog.Info("Admission stats enabled", zap.String("prefix", cfg.Database.Redis.StatsPrefix))
	}

	controller := concurrency.NewController(concurrency.Settings{
		Window:        cfg.ConcurrencyWindow(),
		RateThreshold: cfg.Concurrency.RateThreshold,
		MinLevel:      cfg.Concurrency.MinLevel,
		MaxLevel:      cfg.Concurrency.MaxLevel,
	})
	admission := concurrency.NewAdmission(controller, cfg.Concurrency.InitialLevel, stats, log)

	handler, err := openairoute.NewHandler(openairoute.LoadConfig(cfg), upstream, admission, obs, log)
	if err != nil {
		zapLog.Fatal("failed to create openai-route handler", zap.Error(err))
	}

	srv := server.New(cfg.Server.Address, handler, log)
	srv.RegisterCheck("upstream", func(ctx context.Context) error {
		return upstream.Check(ctx, cfg.Upstream.HealthPath, 0)
	})

	// --- Zeebe intake (optional) ---
	var jobWorker *camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled && config.IsWorkerEnabled(cfg, cfg.Camunda.TaskType) {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		srv.RegisterCheck("zeebe", zeebe.HealthCheck)

		wcfg := config.GetWorkerConfig(cfg, cfg.Camunda.TaskType)
		jobWorker = camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      cfg.Camunda.TaskType,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, log)
	} else {
		zapLog.Info("Zeebe intake disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping gateway...")
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("Job server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if jobWorker != nil {
		jobWorker.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping job server", zap.Error(err))
	}

	zapLog.Info("Inference gateway stopped gracefully")
}
