package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/catalog"
	"classattend/internal/config"
	"classattend/internal/logger"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/store"
	"classattend/internal/sweeper"
)

// Worker reconciles closed attendance windows: on a cron schedule and after
// each window announced on the queue ends.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zl.Info("shutdown signal received")
		cancel()
	}()

	if cfg.StoreBackend == config.StoreMemory {
		zl.Fatal("worker needs a shared store; set STORE_BACKEND to postgres or sqlite")
	}
	var db *store.DB
	if cfg.StoreBackend == config.StoreSQLite {
		db, err = store.OpenSQLite(ctx, cfg.SQLitePath)
	} else {
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		zl.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	repo := attendance.NewRepository(db.Client)
	cat := catalog.NewSQL(db.Client)
	if err := repo.Migrate(ctx); err != nil {
		zl.Fatal("migrate attendance", zap.Error(err))
	}
	if err := cat.Migrate(ctx); err != nil {
		zl.Fatal("migrate catalog", zap.Error(err))
	}

	svc := attendance.NewService(repo, cat,
		attendance.WithLogger(zl),
		attendance.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)

	sw, err := sweeper.New(svc, cfg.ReconcileSchedule, cfg.ReconcileGrace, attendance.SystemClock, zl)
	if err != nil {
		zl.Fatal("sweeper init failed", zap.Error(err))
	}
	if _, err := sw.RunOnce(ctx); err != nil {
		zl.Warn("initial sweep failed", zap.Error(err))
	}
	sw.Start()
	defer sw.Stop()

	if cfg.QueueBackend != "redis" {
		zl.Info("no shared queue configured, relying on the schedule", zap.String("schedule", cfg.ReconcileSchedule))
		<-ctx.Done()
		zl.Info("worker stopped")
		return
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx); err != nil {
		zl.Fatal("redis unavailable", zap.Error(err))
	}
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

	zl.Info("worker started, waiting for messages", zap.String("schedule", cfg.ReconcileSchedule))
	if err := sw.Consume(ctx, q); err != nil && ctx.Err() == nil {
		zl.Error("queue consumer stopped", zap.Error(err))
	}
	zl.Info("worker stopped")
}
