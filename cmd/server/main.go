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

	"github.com/feichai0017/filter-reader/api/handlers"
	"github.com/feichai0017/filter-reader/api/routes"
	"github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/internal/agent"
	"github.com/feichai0017/filter-reader/pkg/logger"
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
		log.Fatal("Failed to create extraction service", logger.Error(err))
	}
	defer svc.Close()

	h := handlers.NewHandlers(svc, log.Named("api"))
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	// expired uploads and results
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := svc.CleanupTasks(ctx); err != nil {
					log.Error("Cleanup failed", logger.Error(err))
				}
			}
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
		os.Exit(1)
	}
}
