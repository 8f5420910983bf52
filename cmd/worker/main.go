// Package main runs the background worker: gateway notification jobs, the
// expiry sweep of abandoned checkouts and a Prometheus scrape endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/payment"
	"github.com/learnhub/backend/internal/transactions"
	"github.com/learnhub/backend/internal/worker"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var pub broker.Publisher = broker.Nop{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := broker.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq disabled", zap.Error(err))
		} else {
			defer amqpPub.Close()
			pub = amqpPub
		}
	}

	m := metrics.Default()
	respCache := cache.New(rdb.Client, cache.Config{
		Enabled: cfg.Cache.Enabled,
		Prefix:  cfg.Cache.Prefix,
		TTL:     cfg.Cache.TTL,
	}, logger)
	gateway := payment.NewClient(payment.Config{
		ServerKey:       cfg.Midtrans.ServerKey,
		BaseURL:         cfg.Midtrans.BaseURL,
		EnabledPayments: cfg.Midtrans.EnabledPayments,
		Timeout:         time.Duration(cfg.Midtrans.TimeoutSec) * time.Second,
	}, m, logger)

	txSvc := transactions.NewService(transactions.NewRepository(pool), courses.NewRepository(pool), gateway, pub, respCache, m, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewPaymentProcessor(jobQueue, txSvc, m, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New()
	sweeper := worker.NewExpirySweeper(txSvc, cfg.Transactions.PendingTTL, logger)
	if _, err := sweeper.Schedule(workerCtx, scheduler, cfg.Transactions.ExpiryCron); err != nil {
		logger.Fatal("schedule expiry sweep", zap.Error(err))
	}
	scheduler.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	gin.SetMode(gin.ReleaseMode)
	metricsSrv := newMetricsServer(cfg.Worker.MetricsAddr, prometheus.DefaultGatherer)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener", zap.Error(err))
		}
	}()
	logger.Info("worker started",
		zap.String("expiry_cron", cfg.Transactions.ExpiryCron),
		zap.String("metrics_addr", cfg.Worker.MetricsAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics listener shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("processor did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
