package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStatusTTL is how long a status record is kept.
const DefaultStatusTTL = 24 * time.Hour

// StatusStore keeps task status records under task_status:<id>.
type StatusStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStatusStore(client *redis.Client, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusStore{redis: client, ttl: ttl}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

func (s *StatusStore) Save(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := s.redis.Set(ctx, statusKey(status.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// Get returns ErrTaskNotFound when no record exists.
func (s *StatusStore) Get(ctx context.Context, taskID string) (*TaskStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

func (s *StatusStore) Close() error {
	return s.redis.Close()
}
