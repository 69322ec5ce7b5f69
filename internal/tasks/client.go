package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// TaskClient handles task enqueuing with improved error handling and context support
type TaskClient struct {
	client *asynq.Client
	logger *logger.Logger
}

func (c *TaskClient) GetClient() *asynq.Client {
	return c.client
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	return &TaskClient{
		client: asynq.NewClient(redisOpt),
		logger: logger.New("TASKS"),
	}
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueueNotify queues one notification for fan-out.
func (c *TaskClient) EnqueueNotify(payload NotifyPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notify payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeNotify, raw,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutShort),
	)
	info, err := c.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("failed to enqueue notify task: %w", err)
	}

	c.logger.Info("enqueued notify task %s event=%s", info.ID, payload.Event)
	return nil
}
