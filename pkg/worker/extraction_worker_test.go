package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/pkg/logger"
	"github.com/feichai0017/filter-reader/pkg/queue"
)

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleExtraction(ctx context.Context, task *models.ExtractionTask) error {
	return m.Called(ctx, task).Error(0)
}

func newTestWorker(h ExtractionHandler) (*ExtractionWorker, *logger.TestLogger) {
	log := logger.NewTestLogger()
	return &ExtractionWorker{BaseWorker: BaseWorker{mux: asynq.NewServeMux(), logger: log}, handler: h}, log
}

func task(t *testing.T, id string) *asynq.Task {
	t.Helper()
	at, err := queue.NewExtractionTask(&models.ExtractionTask{ID: id, StorageKey: "uploads/" + id + "/a.txt"})
	require.NoError(t, err)
	return at
}

func TestHandleExtraction(t *testing.T) {
	h := new(mockHandler)
	h.On("HandleExtraction", mock.Anything, mock.MatchedBy(func(tk *models.ExtractionTask) bool { return tk.ID == "t1" })).Return(nil)
	w, _ := newTestWorker(h)

	require.NoError(t, w.handleExtraction(context.Background(), task(t, "t1")))
	h.AssertExpectations(t)
}

func TestHandleExtractionSkipsRetryForUnsupported(t *testing.T) {
	h := new(mockHandler)
	h.On("HandleExtraction", mock.Anything, mock.Anything).Return(fmt.Errorf("open: %w", filter.ErrUnsupported)).Once()
	w, _ := newTestWorker(h)

	err := w.handleExtraction(context.Background(), task(t, "t2"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, filter.ErrUnsupported)
}

func TestHandleExtractionRetriesTransientErrors(t *testing.T) {
	h := new(mockHandler)
	h.On("HandleExtraction", mock.Anything, mock.Anything).Return(errors.New("storage timeout"))
	w, _ := newTestWorker(h)

	err := w.handleExtraction(context.Background(), task(t, "t3"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleExtractionMalformedPayload(t *testing.T) {
	h := new(mockHandler)
	w, log := newTestWorker(h)

	err := w.handleExtraction(context.Background(), asynq.NewTask(queue.TaskTypeExtract, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, log.Messages("ERROR"), "Dropping malformed task")
	h.AssertNotCalled(t, "HandleExtraction", mock.Anything, mock.Anything)
}
