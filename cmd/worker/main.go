// Package main runs the background worker that persists audit entries.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/solidariza/backend/config"
	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/pkg/database"
	"github.com/solidariza/backend/pkg/logger"
	"github.com/solidariza/backend/pkg/queue"
	"github.com/solidariza/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, log)
	processor := audit.NewProcessor(audit.NewRepository(pool), jobQueue, cfg.Audit.PollTimeout, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	log.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(cfg.Audit.PollTimeout + 2*time.Second):
		log.Warn("audit processor did not stop in time")
	}
	log.Info("worker stopped")
}
