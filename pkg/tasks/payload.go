// Package tasks distributes per-entity training over an Asynq queue
package tasks

import (
	"errors"
	"time"
)

// TypeEntityTraining is the task type for training one entity
const TypeEntityTraining = "entity:train"

// ErrEntityRequired is returned for a payload without an entity id
var ErrEntityRequired = errors.New("task payload entity id is required")

// TrainingPayload is the payload of a training task
type TrainingPayload struct {
	EntityID   string    `json:"entity_id"`
	Trigger    string    `json:"trigger,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// UniqueID returns the task id. One id per entity keeps at most one
// pending training task per entity in the queue.
func (p TrainingPayload) UniqueID() string {
	return "train:" + p.EntityID
}

// Validate checks the payload
func (p TrainingPayload) Validate() error {
	if p.EntityID == "" {
		return ErrEntityRequired
	}

	return nil
}
