package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/afripay/wallet-core/internal/api"
	"github.com/afripay/wallet-core/internal/api/middleware"
	"github.com/afripay/wallet-core/internal/config"
	"github.com/afripay/wallet-core/internal/db"
	"github.com/afripay/wallet-core/internal/domain"
	"github.com/afripay/wallet-core/internal/gateway"
	"github.com/afripay/wallet-core/internal/idempotency"
	"github.com/afripay/wallet-core/internal/observability"
	"github.com/afripay/wallet-core/internal/repository"
	"github.com/afripay/wallet-core/internal/service"
	"github.com/afripay/wallet-core/internal/tasklog"
	"github.com/afripay/wallet-core/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and the settlement, reclaim and
// notification workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	repo := repository.NewRepository(pool)
	guard := idempotency.NewGuard(redisClient, cfg.IdempotencyTTL)
	taskLog := tasklog.NewLog(redisClient)
	notifier := service.NewFanout(redisClient)

	providers := gateway.NewRegistry(gateway.NewInternalProvider()).
		Register(domain.KindTopUp, gateway.NewMockProvider("payment-gateway")).
		Register(domain.KindUtility, gateway.NewMockProvider("utility-gateway")).
		Register(domain.KindSubscription, gateway.NewMockProvider("subscription-gateway")).
		Register(domain.KindBettingFund, gateway.NewMockProvider("betting-gateway")).
		Register(domain.KindCardOrder, gateway.NewMockProvider("card-issuer"))

	fraud := service.NewFraudMonitor(repo, notifier)
	wallet := service.NewWalletService(repo, guard, taskLog, fraud, notifier)
	settlement := service.NewSettlement(repo, providers, notifier)
	dispatch := service.NewDispatch(repo, service.LogPusher{})

	settlementPool := worker.NewSettlementPool(redisClient, worker.PoolConfig{
		Group:         cfg.SettlementGroup,
		Handler:       settlement.Handle,
		DeadLetter:    settlement.DeadLetter,
		BatchSize:     cfg.SettlementBatch,
		BlockDuration: cfg.SettlementBlock,
		MinIdle:       cfg.SettlementMinIdle,
		MaxDeliveries: cfg.MaxDeliveries,
	})
	reclaimWorker := worker.NewReclaimWorker(settlementPool.Consumers(), taskLog).
		WithInterval(cfg.ReclaimInterval)
	notificationWorker := worker.NewNotificationWorker(redisClient, dispatch)

	stopPool := settlementPool.Run(ctx)
	stopReclaim := reclaimWorker.Run(ctx)
	stopNotifications := notificationWorker.Run(ctx)
	logger.Info("workers started",
		zap.Int("lanes", domain.LaneCount),
		zap.Duration("reclaim_interval", cfg.ReclaimInterval),
	)

	router := api.NewRouter(cfg, logger, pool, redisClient, wallet)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopNotifications()
	stopReclaim()
	stopPool()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
