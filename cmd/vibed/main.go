// Command vibed runs the VibeLayer effect orchestrator against a Redis blackboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/vibelayer/internal/config"
	"github.com/dyluth/vibelayer/internal/logging"
	"github.com/dyluth/vibelayer/internal/orchestrator"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load vibelayer.yml (VIBELAYER_CONFIG overrides the path) plus env overrides
	cfg, err := config.Load(os.Getenv("VIBELAYER_CONFIG"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.With(zap.String("instance", cfg.Instance))

	// 2. Connect to the blackboard
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis_url: %w", err)
	}
	bbClient, err := blackboard.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return fmt.Errorf("failed to create blackboard client: %w", err)
	}
	defer bbClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := bbClient.Ping(ctx); err != nil {
		return fmt.Errorf("redis not accessible: %w", err)
	}

	// 3. Wire renderers, orchestrator and engine
	registry, err := cfg.BuildRegistry(bbClient)
	if err != nil {
		return fmt.Errorf("failed to build renderer registry: %w", err)
	}
	orch := orchestrator.New(cfg.OrchestratorSettings(), registry, logger)
	engine := orchestrator.NewEngine(bbClient, orch, registry, cfg.EngineSettings(), logger)

	health := orchestrator.NewHealthServer(bbClient, orch, cfg.HealthAddr, logger)
	if err := health.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	logger.Info("daemon_started",
		zap.String("event_type", "daemon_started"),
		zap.Strings("platforms", registry.Platforms()),
		zap.Float64("brand_threshold", cfg.Orchestrator.BrandThreshold),
		zap.String("brand_mode", cfg.Orchestrator.BrandMode),
	)

	// 4. Run until signalled or a component fails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := engine.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("engine stopped: subscriptions closed")
		}
		return nil
	})
	g.Go(func() error {
		return orch.Run(gctx, engine)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return health.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("daemon_stopped", zap.String("event_type", "daemon_stopped"), zap.Error(err))
	return err
}
