package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/config"
	"classattend/internal/handler"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/store"
	"classattend/internal/sweeper"
)

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

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, zl); err != nil {
		zl.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, zl *zap.Logger) error {
	ctx := context.Background()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	checks := map[string]handler.HealthCheck{"db": backend.Healthy}

	svc := attendance.NewService(backend.Store, backend.Catalog,
		attendance.WithLogger(zl),
		attendance.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		// Nothing outside this process can read an in-memory queue, so the
		// sweeper runs here.
		mq := queue.NewInMemory(64)
		sw, err := sweeper.New(svc, cfg.ReconcileSchedule, cfg.ReconcileGrace, attendance.SystemClock, zl)
		if err != nil {
			return err
		}
		sweepCtx, stopSweep := context.WithCancel(ctx)
		defer stopSweep()
		sw.Start()
		defer sw.Stop()
		go func() { _ = sw.Consume(sweepCtx, mq) }()
		q = mq
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		checks["redis"] = redisClient.Healthy
	}

	h := handler.New(svc, backend.Catalog, q, cfg.SubmitURL, zl)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(zl))
	r.Use(httpmiddleware.CORS(nil))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware(httpmiddleware.ByClientIP))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", handler.Health(checks))

	submitLimit := httpmiddleware.NewSimpleTokenBucket(cfg.SubmitLimitPerMin, cfg.SubmitLimitPerMin)
	h.Register(r, auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer), submitLimit.GinMiddleware(httpmiddleware.ByActor))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced shutdown", zap.Error(err))
	}
	zl.Info("server exited")
	return nil
}
