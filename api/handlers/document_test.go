package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/api/handlers"
	"github.com/feichai0017/filter-reader/api/routes"
	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/internal/service/extraction"
	"github.com/feichai0017/filter-reader/internal/utils/validator"
	"github.com/feichai0017/filter-reader/pkg/converters"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) ProcessFile(ctx context.Context, filename string, size int64, file io.ReadSeeker) (*extraction.TaskInfo, error) {
	args := m.Called(filename, size)
	task, _ := args.Get(0).(*extraction.TaskInfo)
	return task, args.Error(1)
}

func (m *mockService) ProcessBatch(ctx context.Context, files []*multipart.FileHeader) ([]*extraction.TaskInfo, error) {
	args := m.Called(len(files))
	tasks, _ := args.Get(0).([]*extraction.TaskInfo)
	return tasks, args.Error(1)
}

func (m *mockService) HandleExtraction(ctx context.Context, task *models.ExtractionTask) error {
	return m.Called(task).Error(0)
}

func (m *mockService) ExtractNow(ctx context.Context, filename string, size int64, file io.ReadSeeker) (*converters.ExtractedDocument, error) {
	args := m.Called(filename, size)
	doc, _ := args.Get(0).(*converters.ExtractedDocument)
	return doc, args.Error(1)
}

func (m *mockService) GetProcessingStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	args := m.Called(taskID)
	st, _ := args.Get(0).(*queue.TaskStatus)
	return st, args.Error(1)
}

func (m *mockService) GetExtractedDocument(ctx context.Context, taskID string) (*converters.ExtractedDocument, error) {
	args := m.Called(taskID)
	doc, _ := args.Get(0).(*converters.ExtractedDocument)
	return doc, args.Error(1)
}

func (m *mockService) CancelTask(ctx context.Context, taskID string) error {
	return m.Called(taskID).Error(0)
}

func (m *mockService) CleanupTasks(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockService) Filters() []string {
	return m.Called().Get(0).([]string)
}

func newRouter(svc extraction.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.SetupRoutes(r, handlers.NewHandlers(svc, logger.NewNop()))
	return r
}

func upload(t *testing.T, url, field, name, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	w, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func extracted() *converters.ExtractedDocument {
	return &converters.ExtractedDocument{
		TaskID: "t1",
		Status: models.StatusCompleted,
		Lines:  []converters.LineContent{{Text: "first", Position: 1}, {Text: "second", Position: 2}},
	}
}

func TestExtractDocument(t *testing.T) {
	svc := new(mockService)
	svc.On("ExtractNow", "a.txt", int64(5)).Return(extracted(), nil)
	r := newRouter(svc)

	rec := serve(r, upload(t, "/api/v1/documents/extract?format=text", "file", "a.txt", "hello"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first\nsecond", rec.Body.String())

	rec = serve(r, upload(t, "/api/v1/documents/extract", "file", "a.txt", "hello"))
	assert.Equal(t, http.StatusOK, rec.Code)
	var doc converters.ExtractedDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Lines, 2)
}

func TestExtractDocumentErrors(t *testing.T) {
	svc := new(mockService)
	invalid := &extraction.ValidationError{Result: &validator.ValidationResult{
		Errors: []validator.ValidationError{{Code: validator.CodeUnsupportedType, Message: "no filter"}},
	}}
	svc.On("ExtractNow", "a.doc", mock.Anything).Return(nil, invalid)
	svc.On("ExtractNow", "b.pdf", mock.Anything).Return(nil, fmt.Errorf("load: %w", filter.ErrUnavailable))
	r := newRouter(svc)

	rec := serve(r, upload(t, "/api/v1/documents/extract", "file", "a.doc", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), validator.CodeUnsupportedType)

	rec = serve(r, upload(t, "/api/v1/documents/extract", "file", "b.pdf", "x"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(r, upload(t, "/api/v1/documents/extract", "wrong", "a.txt", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessDocument(t *testing.T) {
	svc := new(mockService)
	svc.On("ProcessFile", "a.txt", int64(5)).Return(&extraction.TaskInfo{
		ID:       "t1",
		Status:   models.StatusPending,
		Document: models.DocumentMetadata{Filename: "a.txt", Extension: ".txt", FileSize: 5, CreatedAt: time.Now()},
	}, nil)

	rec := serve(newRouter(svc), upload(t, "/api/v1/documents/process", "file", "a.txt", "hello"))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp handlers.ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "t1", resp.TaskID)
	assert.Equal(t, ".txt", resp.FileType)
}

func TestProcessBatchRequiresFiles(t *testing.T) {
	svc := new(mockService)
	rec := serve(newRouter(svc), upload(t, "/api/v1/documents/batch", "other", "a.txt", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ProcessBatch", mock.Anything)
}

func TestStatusAndDownload(t *testing.T) {
	svc := new(mockService)
	svc.On("GetProcessingStatus", "t1").Return(&queue.TaskStatus{TaskID: "t1", Status: models.StatusRunning, Progress: 0.1}, nil)
	svc.On("GetProcessingStatus", "nope").Return(nil, fmt.Errorf("get: %w", queue.ErrTaskNotFound))
	svc.On("GetExtractedDocument", "t1").Return(nil, fmt.Errorf("%w: running", extraction.ErrNotReady))
	svc.On("GetExtractedDocument", "t2").Return(extracted(), nil)
	r := newRouter(svc)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/documents/status/t1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/documents/status/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/documents/download/t1", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/documents/download/t2?format=text", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first\nsecond", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "result_t2.txt")
}

func TestCancelAndFilters(t *testing.T) {
	svc := new(mockService)
	svc.On("CancelTask", "t1").Return(nil)
	svc.On("Filters").Return([]string{".html", ".txt"})
	r := newRouter(svc)

	rec := serve(r, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/task/t1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/documents/filters", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"extensions":[".html",".txt"]}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
