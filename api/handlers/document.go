package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/service/extraction"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
)

type DocumentHandler struct {
	service extraction.Service
	logger  logger.Logger
}

// ProcessResponse 定义处理响应结构
type ProcessResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	FileType  string `json:"fileType"`
	CreatedAt string `json:"createdAt"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func NewDocumentHandler(service extraction.Service, logger logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger,
	}
}

func newProcessResponse(task *extraction.TaskInfo) ProcessResponse {
	return ProcessResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  task.Document.Filename,
		FileSize:  task.Document.FileSize,
		FileType:  task.Document.Extension,
		CreatedAt: task.Document.CreatedAt.Format(time.RFC3339),
	}
}

// ExtractDocument extracts the text of an upload synchronously. With
// ?format=text the plain text is returned instead of the JSON document.
func (h *DocumentHandler) ExtractDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	doc, err := h.service.ExtractNow(c.Request.Context(), header.Filename, header.Size, file)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to extract text", err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, doc.Text("\n"))
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ProcessDocument 处理单个文档
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	task, err := h.service.ProcessFile(c.Request.Context(), header.Filename, header.Size, file)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to process file", err)
		return
	}

	c.JSON(http.StatusAccepted, newProcessResponse(task))
}

// ProcessBatch 批量处理文档
func (h *DocumentHandler) ProcessBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	tasks, err := h.service.ProcessBatch(c.Request.Context(), files)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to process files", err)
		return
	}

	responses := make([]ProcessResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = newProcessResponse(task)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Processing %d documents", len(files)),
		"tasks":   responses,
	})
}

// GetStatus 获取处理状态
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")

	status, err := h.service.GetProcessingStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to get status", err)
		return
	}

	resp := gin.H{
		"taskId":    status.TaskID,
		"status":    string(status.Status),
		"progress":  status.Progress,
		"error":     status.Error,
		"startedAt": status.StartedAt.Format(time.RFC3339),
	}
	if !status.FinishedAt.IsZero() {
		resp["finishedAt"] = status.FinishedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadResult 下载处理结果
func (h *DocumentHandler) DownloadResult(c *gin.Context) {
	taskID := c.Param("taskId")

	result, err := h.service.GetExtractedDocument(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, statusFor(err), "Failed to get result", err)
		return
	}

	if c.Query("format") == "text" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result_%s.txt", taskID))
		c.String(http.StatusOK, result.Text("\n"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result_%s.json", taskID))
	c.JSON(http.StatusOK, result)
}

// CancelTask 取消处理任务
func (h *DocumentHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, statusFor(err), "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

// ListFilters reports the file extensions text can be extracted from.
func (h *DocumentHandler) ListFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"extensions": h.service.Filters()})
}

func statusFor(err error) int {
	var verr *extraction.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, extraction.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, filter.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, filter.ErrUnavailable), errors.Is(err, filter.ErrProtocol):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	var verr *extraction.ValidationError
	if errors.As(err, &verr) {
		response.Details = verr.Result.Errors
	}
	c.JSON(status, response)
}
