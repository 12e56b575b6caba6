package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/observability"
	"github.com/hibiken/asynq"
)

// QueueManager manages task queuing
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

// NewQueueManager creates a queue manager publishing to queue
func NewQueueManager(redisOpt asynq.RedisClientOpt, queue string) *QueueManager {
	return &QueueManager{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     queue,
	}
}

// Queue returns the queue name tasks are published to
func (q *QueueManager) Queue() string {
	return q.queue
}

func (q *QueueManager) trainingOptions(payload TrainingPayload, opts ...asynq.Option) []asynq.Option {
	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(q.queue),
		asynq.MaxRetry(2),
		asynq.Timeout(30 * time.Minute),
	}

	return append(defaultOpts, opts...)
}

// EnqueueTraining enqueues a training task. It reports false without error
// when the entity already has a pending task.
func (q *QueueManager) EnqueueTraining(payload TrainingPayload, opts ...asynq.Option) (bool, error) {
	if err := payload.Validate(); err != nil {
		return false, err
	}

	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	task := asynq.NewTask(TypeEntityTraining, data)

	if _, err := q.client.Enqueue(task, q.trainingOptions(payload, opts...)...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return false, nil
		}

		return false, fmt.Errorf("enqueue %s: %w", payload.UniqueID(), err)
	}

	observability.RecordTaskEnqueued(payload.Trigger)

	return true, nil
}

// IsTaskPendingOrRunning checks if an entity has a queued or active training task
func (q *QueueManager) IsTaskPendingOrRunning(entityID string) (bool, error) {
	payload := TrainingPayload{EntityID: entityID}

	info, err := q.inspector.GetTaskInfo(q.queue, payload.UniqueID())
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}

		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateRetry, nil
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}
