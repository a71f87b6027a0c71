// Package extraction runs text extraction for uploaded documents, either
// synchronously or through the task queue.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/internal/utils/validator"
	"github.com/feichai0017/filter-reader/pkg/converters"
	"github.com/feichai0017/filter-reader/pkg/queue"
)

// ErrNotReady is returned when a result is requested before the task completed.
var ErrNotReady = errors.New("task is not completed")

// ValidationError reports an upload rejected by the validator.
type ValidationError struct {
	Result *validator.ValidationResult
}

func (e *ValidationError) Error() string {
	if len(e.Result.Errors) == 0 {
		return fmt.Sprintf("invalid file %s", e.Result.FileInfo.Filename)
	}
	return fmt.Sprintf("invalid file %s: %s", e.Result.FileInfo.Filename, e.Result.Errors[0].Message)
}

// TaskInfo describes a queued extraction.
type TaskInfo struct {
	ID       string                  `json:"taskId"`
	Status   models.ProcessingStatus `json:"status"`
	Document models.DocumentMetadata `json:"document"`
}

// Service is the extraction API used by the HTTP handlers and the worker.
type Service interface {
	// ProcessFile validates and stores a document, then queues its extraction.
	ProcessFile(ctx context.Context, filename string, size int64, file io.ReadSeeker) (*TaskInfo, error)
	// ProcessBatch queues every file; it stops at the first failure.
	ProcessBatch(ctx context.Context, files []*multipart.FileHeader) ([]*TaskInfo, error)
	// HandleExtraction runs a queued task and stores its result.
	HandleExtraction(ctx context.Context, task *models.ExtractionTask) error
	// ExtractNow extracts a document synchronously without storing anything.
	ExtractNow(ctx context.Context, filename string, size int64, file io.ReadSeeker) (*converters.ExtractedDocument, error)
	GetProcessingStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
	GetExtractedDocument(ctx context.Context, taskID string) (*converters.ExtractedDocument, error)
	CancelTask(ctx context.Context, taskID string) error
	CleanupTasks(ctx context.Context) error
	// Filters lists the extensions text can be extracted from.
	Filters() []string
}
