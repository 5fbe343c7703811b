package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/app"
	"github.com/nekogravitycat/reservation-backend/internal/config"
	"github.com/nekogravitycat/reservation-backend/internal/db"
	"github.com/nekogravitycat/reservation-backend/internal/logger"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Production: cfg.IsProduction})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zl.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		zl.Fatal("failed to apply schema", zap.Error(err))
	}

	// Redis backs both the cache and the notification queue
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zl.Warn("redis unavailable, cache degrades to direct reads", zap.Error(err))
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer queue.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	container := app.NewContainer(app.Config{
		IsProduction: cfg.IsProduction,
		ProdOrigins:  cfg.ProdOrigins,
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
		Metrics:              metrics.New(reg),
		Gatherer:             reg,
		Logger:               zl,
	})

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		zl.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	zl.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced to shutdown", zap.Error(err))
	}

	// Flush notifications still being enqueued
	container.Dispatcher.Wait()

	zl.Info("server exited gracefully")
}
