// Command vibe-backend simulates a platform renderer: it consumes render
// commands from the blackboard and acknowledges them after each effect's
// duration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/vibelayer/internal/backend"
	"github.com/dyluth/vibelayer/internal/logging"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

// run contains the main logic and returns an exit code.
// This separation makes the logic testable and ensures deferred functions run.
func run() int {
	cfg, err := backend.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		return 1
	}
	defer logger.Sync()
	logger = logger.With(zap.String("instance", cfg.Instance))

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid_redis_url", zap.Error(err))
		return 1
	}

	bbClient, err := blackboard.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		logger.Error("blackboard_client_failed", zap.Error(err))
		return 1
	}
	defer bbClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = bbClient.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Error("redis_unreachable", zap.String("redis_url", cfg.RedisURL), zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := backend.New(cfg, bbClient, logger).Start(ctx); err != nil {
		logger.Error("backend_failed", zap.Error(err))
		return 1
	}
	return 0
}
