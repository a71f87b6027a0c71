package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/storage/minio"
	"github.com/feichai0017/filter-reader/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage holds uploaded documents and extraction results.
type Storage interface {
	// Store writes reader under key and returns the key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(ctx context.Context, storageType StorageType, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// UploadKey is where the original document of a task is stored.
func UploadKey(taskID, filename string) string {
	return path.Join("uploads", taskID, path.Base(filename))
}

// ResultKey is where the extraction result of a task is stored.
func ResultKey(taskID string) string {
	return path.Join("results", taskID+".json")
}
