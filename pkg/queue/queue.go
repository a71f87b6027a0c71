package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/filter-reader/internal/models"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

// TaskTypeExtract is the asynq task type of a text extraction.
const TaskTypeExtract = "document:extract"

// Queues in priority order with their asynq weights.
var Queues = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

var queueOrder = []string{"critical", "default", "low"}

// ErrTaskNotFound is returned when a task has no status and is in no queue.
var ErrTaskNotFound = errors.New("task not found")

// Queue schedules extraction tasks and tracks their status.
type Queue interface {
	Enqueue(ctx context.Context, task *models.ExtractionTask) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveStatus(ctx context.Context, status *TaskStatus) error
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string                  `json:"taskId"`
	Status     models.ProcessingStatus `json:"status"`
	Progress   float64                 `json:"progress"`
	Error      string                  `json:"error,omitempty"`
	StartedAt  time.Time               `json:"startedAt"`
	FinishedAt time.Time               `json:"finishedAt,omitempty"`
}

// QueueConfig 定义队列配置
type QueueConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
	StatusTTL      time.Duration
}

// AsynqQueue schedules tasks with asynq and keeps status records in Redis.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	status    *StatusStore
	config    *QueueConfig
	logger    logger.Logger
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(cfg *QueueConfig, log logger.Logger) *AsynqQueue {
	redisOpt := RedisOpt(cfg)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		status:    NewStatusStore(redisClient, cfg.StatusTTL),
		config:    cfg,
		logger:    log,
	}
}

// RedisOpt returns the asynq connection options for cfg.
func RedisOpt(cfg *QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewExtractionTask encodes task as an asynq task.
func NewExtractionTask(task *models.ExtractionTask, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return asynq.NewTask(TaskTypeExtract, payload, opts...), nil
}

// ParseExtractionTask decodes the payload written by NewExtractionTask.
func ParseExtractionTask(t *asynq.Task) (*models.ExtractionTask, error) {
	var task models.ExtractionTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if task.ID == "" || task.StorageKey == "" {
		return nil, fmt.Errorf("invalid task data: missing required fields")
	}
	return &task, nil
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *models.ExtractionTask) error {
	t, err := NewExtractionTask(task,
		asynq.MaxRetry(q.config.MaxRetries),
		asynq.Timeout(q.config.ProcessTimeout),
		asynq.TaskID(task.ID),
		asynq.Queue(queueFor(task.Priority)),
	)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	q.logger.Debug("Task enqueued",
		logger.String("taskId", info.ID),
		logger.String("queue", info.Queue),
	)
	return nil
}

// GetTaskStatus prefers the saved status record and falls back to asking
// the queues.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	status, err := q.status.Get(ctx, taskID)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return nil, err
	}

	for _, name := range queueOrder {
		info, err := q.inspector.GetTaskInfo(name, taskID)
		if err == nil {
			return convertAsynqStatus(info), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// CancelTask removes a waiting task or asks the worker to stop an active one.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	for _, name := range queueOrder {
		info, err := q.inspector.GetTaskInfo(name, taskID)
		if err != nil {
			continue
		}
		if info.State == asynq.TaskStateActive {
			err = q.inspector.CancelProcessing(taskID)
		} else {
			err = q.inspector.DeleteTask(name, taskID)
		}
		if err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
		return q.status.Save(ctx, &TaskStatus{
			TaskID:     taskID,
			Status:     models.StatusCancelled,
			StartedAt:  info.NextProcessAt,
			FinishedAt: time.Now(),
		})
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// SaveStatus records status for the configured TTL.
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *TaskStatus) error {
	return q.status.Save(ctx, status)
}

// Close releases the Redis connections.
func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.status.Close())
}

func queueFor(priority int) string {
	switch priority {
	case 1:
		return "critical"
	case 2:
		return "default"
	default:
		return "low"
	}
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		Status:    models.StatusPending,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStateActive:
		status.Status = models.StatusRunning
		status.Progress = 0.5
	case asynq.TaskStateCompleted:
		status.Status = models.StatusCompleted
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateArchived:
		status.Status = models.StatusFailed
		status.Error = info.LastErr
	case asynq.TaskStateRetry:
		status.Error = info.LastErr
	}
	return status
}
