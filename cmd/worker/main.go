package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/app"
	"github.com/nekogravitycat/reservation-backend/internal/config"
	"github.com/nekogravitycat/reservation-backend/internal/db"
	"github.com/nekogravitycat/reservation-backend/internal/logger"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/notify"
	"github.com/nekogravitycat/reservation-backend/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Production: cfg.IsProduction})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zl.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	queue := asynq.NewClient(redisOpt)
	defer queue.Close()

	m := metrics.New(prometheus.NewRegistry())
	container := app.NewContainer(app.Config{
		IsProduction: cfg.IsProduction,
		DBPool:       pool,
		Redis:        rdb,
		Queue:        queue,
		JWTSecret:    cfg.JWTSecret,
		Collaborators: app.Collaborators{
			IdentityURL:     cfg.Collaborators.IdentityURL,
			InventoryURL:    cfg.Collaborators.InventoryURL,
			PricingURL:      cfg.Collaborators.PricingURL,
			OrganizationURL: cfg.Collaborators.OrganizationURL,
			Token:           cfg.Collaborators.Token,
			Timeout:         cfg.Collaborators.Timeout,
			RequestsPerSec:  cfg.Collaborators.RequestsPerSec,
		},
		DefaultTTL:           cfg.Cache.DefaultTTL,
		ShortTTL:             cfg.Cache.ShortTTL,
		CancelRequiresRefund: cfg.CancelRequiresRefund,
		Metrics:              m,
		Logger:               zl,
	})

	handler := notify.NewHandler(container.Inventory, m, zl.Named("notify"))
	srv, mux := worker.NewServer(redisOpt, cfg.Worker.Concurrency, handler, zl.Named("asynq"))
	if err := srv.Start(mux); err != nil {
		zl.Fatal("failed to start task server", zap.Error(err))
	}

	sweeper, err := worker.NewSweeper(container.Reservations, cfg.Worker.SweepSchedule, zl.Named("sweep"))
	if err != nil {
		zl.Fatal("failed to schedule sweep", zap.Error(err))
	}
	sweeper.Start()
	zl.Info("worker running",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.String("sweep_schedule", cfg.Worker.SweepSchedule),
	)

	<-ctx.Done()
	zl.Info("shutdown signal received")

	sweeper.Stop()
	srv.Shutdown()
	container.Dispatcher.Wait()

	zl.Info("worker exited gracefully")
}
