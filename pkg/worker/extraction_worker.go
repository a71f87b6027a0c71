package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
)

// ExtractionHandler runs one extraction task.
type ExtractionHandler interface {
	HandleExtraction(ctx context.Context, task *models.ExtractionTask) error
}

type ExtractionWorker struct {
	BaseWorker
	handler ExtractionHandler
}

func NewExtractionWorker(cfg *Config, handler ExtractionHandler, log logger.Logger) *ExtractionWorker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = queue.Queues
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &ExtractionWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		handler: handler,
	}
	w.mux.HandleFunc(queue.TaskTypeExtract, w.handleExtraction)
	return w
}

func (w *ExtractionWorker) handleExtraction(ctx context.Context, t *asynq.Task) error {
	task, err := queue.ParseExtractionTask(t)
	if err != nil {
		w.logger.Error("Dropping malformed task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing extraction task",
		logger.String("taskId", task.ID),
		logger.String("filename", task.Document.Filename),
	)
	w.writeResult(t, `{"status":"running","progress":0}`)

	if err := w.handler.HandleExtraction(ctx, task); err != nil {
		w.writeResult(t, fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))
		// Retrying cannot help a document no filter understands.
		if errors.Is(err, filter.ErrUnsupported) || errors.Is(err, filter.ErrUnavailable) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.writeResult(t, `{"status":"completed","progress":100}`)
	return nil
}

func (w *ExtractionWorker) writeResult(t *asynq.Task, data string) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(data)); err != nil {
		w.logger.Error("Failed to write task result", logger.Error(err))
	}
}
