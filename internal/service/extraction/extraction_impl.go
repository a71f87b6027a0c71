package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/internal/reader"
	"github.com/feichai0017/filter-reader/internal/utils/validator"
	"github.com/feichai0017/filter-reader/pkg/converters"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
	"github.com/feichai0017/filter-reader/pkg/storage"
)

// Filters resolves filters and reports which extensions they cover.
type Filters interface {
	reader.Resolver
	IsAvailable(ext string) bool
	Extensions() []string
}

type ServiceConfig struct {
	MaxFileSize     int64
	QueuePriority   int
	MaxConcurrent   int
	RetentionPeriod time.Duration
	PullSize        int
	Newline         string
}

func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxFileSize:     50 * 1024 * 1024,
		QueuePriority:   2,
		MaxConcurrent:   5,
		RetentionPeriod: 24 * time.Hour,
		PullSize:        reader.DefaultPullSize,
	}
}

type ExtractionService struct {
	filters   Filters
	queue     queue.Queue
	storage   storage.Storage
	validator *validator.DocumentValidator
	converter *converters.JSONConverter
	logger    logger.Logger
	config    *ServiceConfig
}

func NewService(filters Filters, q queue.Queue, store storage.Storage, log logger.Logger, cfg *ServiceConfig) *ExtractionService {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	return &ExtractionService{
		filters:   filters,
		queue:     q,
		storage:   store,
		validator: validator.NewDocumentValidator(log, filters, &validator.ValidatorConfig{MaxFileSize: cfg.MaxFileSize}),
		converter: converters.NewJSONConverter(),
		logger:    log,
		config:    cfg,
	}
}

func (s *ExtractionService) readerOptions() []reader.Option {
	return []reader.Option{
		reader.WithPullSize(s.config.PullSize),
		reader.WithNewline(s.config.Newline),
		reader.WithLogger(s.logger),
	}
}

func (s *ExtractionService) validate(filename string, size int64, file io.ReadSeeker) (*validator.ValidationResult, error) {
	result, err := s.validator.Validate(filename, size, file)
	if err != nil {
		return nil, fmt.Errorf("failed to validate file: %w", err)
	}
	if !result.IsValid {
		return nil, &ValidationError{Result: result}
	}
	return result, nil
}

// ProcessFile 处理单个文件
func (s *ExtractionService) ProcessFile(ctx context.Context, filename string, size int64, file io.ReadSeeker) (*TaskInfo, error) {
	s.logger.Info("Starting file processing",
		logger.String("filename", filename),
		logger.Int64("size", size),
	)

	result, err := s.validate(filename, size, file)
	if err != nil {
		s.logger.Error("File validation failed",
			logger.String("filename", filename),
			logger.Error(err),
		)
		return nil, err
	}

	taskID := uuid.New().String()
	key := storage.UploadKey(taskID, filename)
	if _, err := s.storage.Store(ctx, file, key); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	task := &models.ExtractionTask{
		ID:         taskID,
		StorageKey: key,
		Document:   result.FileInfo.Metadata(),
		Priority:   s.config.QueuePriority,
		CreatedAt:  time.Now(),
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		if derr := s.storage.Delete(ctx, key); derr != nil {
			s.logger.Error("Failed to remove orphaned upload", logger.String("key", key), logger.Error(derr))
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    models.StatusPending,
		StartedAt: task.CreatedAt,
	})

	s.logger.Info("File processing task created",
		logger.String("taskId", taskID),
		logger.String("filename", filename),
	)
	return &TaskInfo{ID: taskID, Status: models.StatusPending, Document: task.Document}, nil
}

// ProcessBatch 批量处理文件
func (s *ExtractionService) ProcessBatch(ctx context.Context, files []*multipart.FileHeader) ([]*TaskInfo, error) {
	tasks := make([]*TaskInfo, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrent > 0 {
		g.SetLimit(s.config.MaxConcurrent)
	}
	for i, header := range files {
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			task, err := s.ProcessFile(ctx, header.Filename, header.Size, file)
			if err != nil {
				return fmt.Errorf("failed to process file %s: %w", header.Filename, err)
			}
			tasks[i] = task
			return nil
		})
	}

	err := g.Wait()
	done := make([]*TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		if t != nil {
			done = append(done, t)
		}
	}
	return done, err
}

// HandleExtraction 实现文档处理逻辑
func (s *ExtractionService) HandleExtraction(ctx context.Context, task *models.ExtractionTask) error {
	if task == nil || task.ID == "" || task.StorageKey == "" {
		return fmt.Errorf("invalid task: missing required data")
	}

	log := s.logger.With(logger.String("taskId", task.ID))
	log.Info("Processing document", logger.String("filename", task.Document.Filename))

	started := time.Now()
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    models.StatusRunning,
		Progress:  0.1,
		StartedAt: started,
	})

	doc, err := s.extract(ctx, task)
	if err != nil {
		log.Error("Document processing failed", logger.Error(err))
		s.saveStatus(ctx, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     models.StatusFailed,
			Error:      err.Error(),
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		return err
	}

	log.Info("Document processing completed",
		logger.Int("lines", doc.Metadata.LineCount),
		logger.Int64("processingMs", doc.Metadata.ProcessingMs),
	)
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     models.StatusCompleted,
		Progress:   1.0,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	return nil
}

func (s *ExtractionService) extract(ctx context.Context, task *models.ExtractionTask) (*converters.ExtractedDocument, error) {
	rc, err := s.storage.Get(ctx, task.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	defer rc.Close()

	lines := reader.ReadAllLinesStream(ctx, s.filters, rc, task.Document.Extension, s.readerOptions()...)
	doc, err := s.converter.Convert(task.ID, task.Document, lines)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.converter.Encode(&buf, doc); err != nil {
		return nil, err
	}
	if _, err := s.storage.Store(ctx, &buf, storage.ResultKey(task.ID)); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	return doc, nil
}

// ExtractNow validates file and returns its text without queuing.
func (s *ExtractionService) ExtractNow(ctx context.Context, filename string, size int64, file io.ReadSeeker) (*converters.ExtractedDocument, error) {
	result, err := s.validate(filename, size, file)
	if err != nil {
		return nil, err
	}

	meta := result.FileInfo.Metadata()
	lines := reader.ReadAllLinesStream(ctx, s.filters, file, meta.Extension, s.readerOptions()...)
	return s.converter.Convert("", meta, lines)
}

// GetProcessingStatus 获取处理状态
func (s *ExtractionService) GetProcessingStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	return status, nil
}

// GetExtractedDocument 获取处理结果
func (s *ExtractionService) GetExtractedDocument(ctx context.Context, taskID string) (*converters.ExtractedDocument, error) {
	status, err := s.GetProcessingStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, status.Status)
	}

	rc, err := s.storage.Get(ctx, storage.ResultKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	defer rc.Close()
	return s.converter.Decode(rc)
}

// CancelTask 取消任务
func (s *ExtractionService) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	s.logger.Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// CleanupTasks 清理过期任务
func (s *ExtractionService) CleanupTasks(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.RetentionPeriod)
	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}
	s.logger.Info("Completed tasks cleanup", logger.Time("threshold", threshold))
	return nil
}

func (s *ExtractionService) Filters() []string {
	return s.filters.Extensions()
}

// saveStatus records status, logging failures.
func (s *ExtractionService) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.String("status", string(status.Status)),
			logger.Error(err),
		)
	}
}

var _ Service = (*ExtractionService)(nil)
