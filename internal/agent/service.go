package agent

import (
	"context"
	"fmt"

	"github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/internal/service/extraction"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
	"github.com/feichai0017/filter-reader/pkg/storage"
)

// Service bundles the extraction service with the resources it holds.
type Service struct {
	*extraction.ExtractionService
	queue *queue.AsynqQueue
}

// Close releases the queue connections.
func (s *Service) Close() error {
	return s.queue.Close()
}

// NewService wires storage, queue and filters from cfg into an extraction
// service.
func NewService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	filters, err := NewFilterRegistry(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filters: %w", err)
	}

	store, err := storage.NewStorage(ctx, storage.StorageType(cfg.Storage.Type), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	q := queue.NewAsynqQueue(QueueConfig(cfg), log.Named("queue"))

	svc := extraction.NewService(filters, q, store, log.Named("extraction"), &extraction.ServiceConfig{
		MaxFileSize:     cfg.Service.MaxFileSize,
		QueuePriority:   2,
		MaxConcurrent:   cfg.Queue.Concurrency,
		RetentionPeriod: cfg.Service.Retention,
		PullSize:        cfg.Reader.PullSize,
		Newline:         cfg.Reader.Newline,
	})
	return &Service{ExtractionService: svc, queue: q}, nil
}

// QueueConfig converts the queue section of cfg.
func QueueConfig(cfg *config.Config) *queue.QueueConfig {
	return &queue.QueueConfig{
		RedisAddr:      cfg.Queue.RedisAddr,
		RedisPassword:  cfg.Queue.RedisPassword,
		RedisDB:        cfg.Queue.RedisDB,
		MaxRetries:     cfg.Queue.MaxRetry,
		ProcessTimeout: cfg.Queue.Timeout,
		StatusTTL:      cfg.Service.Retention,
	}
}
