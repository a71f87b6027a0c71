package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/filter-reader/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Queues        map[string]int
}

type BaseWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger logger.Logger
}

// Start runs the server until ctx is done.
func (w *BaseWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

func (w *BaseWorker) Stop() error {
	w.server.Shutdown()
	return nil
}
