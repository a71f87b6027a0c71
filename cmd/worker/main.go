package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/internal/agent"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
	"github.com/feichai0017/filter-reader/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(logger.WithConfig(cfg.Log))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := agent.NewService(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create extraction service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Close()

	w := worker.NewExtractionWorker(&worker.Config{
		RedisAddr:     cfg.Queue.RedisAddr,
		RedisPassword: cfg.Queue.RedisPassword,
		RedisDB:       cfg.Queue.RedisDB,
		Concurrency:   cfg.Queue.Concurrency,
		Queues:        queue.Queues,
	}, svc, log.Named("worker"))

	if err := w.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started", logger.Int("concurrency", cfg.Queue.Concurrency))

	<-ctx.Done()
	log.Info("Shutting down worker...")
	w.Stop()
	log.Info("Worker stopped")
}
