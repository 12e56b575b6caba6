package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/observability"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// ErrTrainingFailed is returned when the entity's training failed
var ErrTrainingFailed = errors.New("training failed")

// EntityTrainer trains one entity of the current feature table
type EntityTrainer interface {
	TrainEntity(ctx context.Context, entityID string) (training.Result, error)
}

// TaskHandler handles task execution
type TaskHandler struct {
	log     logrus.FieldLogger
	trainer EntityTrainer
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(log logrus.FieldLogger, trainer EntityTrainer) *TaskHandler {
	return &TaskHandler{
		log:     log.WithField("component", "task-handler"),
		trainer: trainer,
	}
}

// HandleTraining trains the payload's entity. Only a failed training is
// returned as an error so Asynq retries it; skipped entities succeed.
func (h *TaskHandler) HandleTraining(ctx context.Context, t *asynq.Task) error {
	var payload TrainingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		observability.RecordError("task-handler", "unmarshal_error")
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log := h.log.WithFields(logrus.Fields{
		"entity":  payload.EntityID,
		"trigger": payload.Trigger,
		"queued":  time.Since(payload.EnqueuedAt),
	})
	log.Debug("Starting training task")

	result, err := h.trainer.TrainEntity(ctx, payload.EntityID)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownEntity) {
			log.WithError(err).Warn("Dropping task for unknown entity")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}

		observability.RecordError("task-handler", "train_error")

		return err
	}

	if result.Status == training.StatusFailed {
		return fmt.Errorf("%w: %s: %s", ErrTrainingFailed, payload.EntityID, result.Reason)
	}

	log.WithFields(logrus.Fields{
		"status":   result.Status,
		"duration": result.Duration,
	}).Info("Training task complete")

	return nil
}

// Routes returns the task handler routes for Asynq
func (h *TaskHandler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeEntityTraining: h.HandleTraining,
	}
}
