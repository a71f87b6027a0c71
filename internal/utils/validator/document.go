package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

// Error codes reported in ValidationError.Code.
const (
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeEmptyFile       = "EMPTY_FILE"
	CodeUnsupportedType = "UNSUPPORTED_FILE_TYPE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
)

// expectedMIME is the type content must have (or descend from) for an
// extension. Extensions missing here are not content checked.
var expectedMIME = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/zip",
	".docm": "application/zip",
	".dotx": "application/zip",
	".pptx": "application/zip",
	".pptm": "application/zip",
	".ppsx": "application/zip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".txt":  "text/plain",
	".text": "text/plain",
	".log":  "text/plain",
	".csv":  "text/plain",
	".md":   "text/plain",
	".htm":  "text/plain",
	".html": "text/plain",
}

// AvailabilityChecker reports whether text can be extracted for an extension.
type AvailabilityChecker interface {
	IsAvailable(ext string) bool
}

// DocumentValidator checks uploads before they are queued.
type DocumentValidator struct {
	logger  logger.Logger
	filters AvailabilityChecker
	config  *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// Metadata converts the file info into document metadata.
func (f FileInfo) Metadata() models.DocumentMetadata {
	return models.DocumentMetadata{
		Filename:  f.Filename,
		Extension: f.Extension,
		MimeType:  f.MimeType,
		FileSize:  f.Size,
		Hash:      f.Hash,
		CreatedAt: time.Now(),
	}
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(log logger.Logger, filters AvailabilityChecker, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{MaxFileSize: 50 * 1024 * 1024}
	}
	return &DocumentValidator{
		logger:  log,
		filters: filters,
		config:  config,
	}
}

// ValidateFile 验证单个文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return v.Validate(file.Filename, file.Size, f)
}

// Validate checks content read from r. r is rewound before returning.
func (v *DocumentValidator) Validate(filename string, size int64, r io.ReadSeeker) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]ValidationError, 0),
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      size,
			Extension: filter.NormalizeExt(filepath.Ext(filename)),
		},
	}

	hash, err := v.calculateHash(r)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	result.FileInfo.MimeType = mt.String()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	result.add(v.performBasicValidation(result.FileInfo)...)
	result.add(v.validateMimeType(result.FileInfo.Extension, mt)...)

	if !result.IsValid {
		v.logger.Info("File rejected",
			logger.String("filename", filename),
			logger.Any("errors", result.Errors),
		)
	}
	return result, nil
}

// ValidateFiles 批量验证文件
func (v *DocumentValidator) ValidateFiles(files []*multipart.FileHeader) ([]*ValidationResult, error) {
	results := make([]*ValidationResult, len(files))
	var g errgroup.Group
	for i, file := range files {
		g.Go(func() error {
			result, err := v.ValidateFile(file)
			if err != nil {
				return fmt.Errorf("failed to validate %s: %w", file.Filename, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ValidationResult) add(errs ...ValidationError) {
	if len(errs) == 0 {
		return
	}
	r.IsValid = false
	r.Errors = append(r.Errors, errs...)
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(info FileInfo) []ValidationError {
	var errs []ValidationError

	if info.Size <= 0 {
		errs = append(errs, ValidationError{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		})
	}
	if info.Size > v.config.MaxFileSize {
		errs = append(errs, ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}
	if !v.filters.IsAvailable(info.Extension) {
		errs = append(errs, ValidationError{
			Code:    CodeUnsupportedType,
			Message: fmt.Sprintf("No text filter is available for %q files", info.Extension),
			Field:   "extension",
		})
	}
	return errs
}

// validateMimeType checks that the content matches its extension.
func (v *DocumentValidator) validateMimeType(ext string, mt *mimetype.MIME) []ValidationError {
	expected, ok := expectedMIME[ext]
	if !ok {
		return nil
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(expected) {
			return nil
		}
	}
	return []ValidationError{{
		Code:    CodeInvalidMimeType,
		Message: fmt.Sprintf("Invalid MIME type %s for extension %s", mt.String(), ext),
		Field:   "mimeType",
	}}
}

// 计算文件哈希
func (v *DocumentValidator) calculateHash(r io.ReadSeeker) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
