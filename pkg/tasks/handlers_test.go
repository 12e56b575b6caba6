package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrainer struct {
	results map[string]training.Result
	calls   []string
}

func (f *fakeTrainer) TrainEntity(_ context.Context, entityID string) (training.Result, error) {
	f.calls = append(f.calls, entityID)

	res, ok := f.results[entityID]
	if !ok {
		return training.Result{}, fmt.Errorf("%w: %q", pipeline.ErrUnknownEntity, entityID)
	}

	return res, nil
}

func newTask(t *testing.T, payload TrainingPayload) *asynq.Task {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return asynq.NewTask(TypeEntityTraining, data)
}

func TestHandleTraining(t *testing.T) {
	trainer := &fakeTrainer{results: map[string]training.Result{
		"DE": {EntityID: "DE", Status: training.StatusTrained},
		"LU": {EntityID: "LU", Status: training.StatusSkipped, Reason: "insufficient history"},
		"FR": {EntityID: "FR", Status: training.StatusFailed, Reason: "singular"},
	}}
	handler := NewTaskHandler(logrus.New(), trainer)

	tests := []struct {
		name      string
		entity    string
		wantErr   error
		skipRetry bool
	}{
		{name: "trained", entity: "DE"},
		{name: "skipped succeeds", entity: "LU"},
		{name: "failed is retried", entity: "FR", wantErr: ErrTrainingFailed},
		{name: "unknown entity is dropped", entity: "ZZ", wantErr: pipeline.ErrUnknownEntity, skipRetry: true},
		{name: "missing entity", entity: "", wantErr: ErrEntityRequired, skipRetry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.HandleTraining(context.Background(), newTask(t, TrainingPayload{
				EntityID:   tt.entity,
				EnqueuedAt: time.Now(),
			}))

			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}

	assert.Equal(t, []string{"DE", "LU", "FR", "ZZ"}, trainer.calls)
}

func TestHandleTraining_BadPayload(t *testing.T) {
	handler := NewTaskHandler(logrus.New(), &fakeTrainer{})

	err := handler.HandleTraining(context.Background(), asynq.NewTask(TypeEntityTraining, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRoutes(t *testing.T) {
	routes := NewTaskHandler(logrus.New(), &fakeTrainer{}).Routes()

	require.Len(t, routes, 1)
	assert.Contains(t, routes, TypeEntityTraining)
}

func TestTrainingPayload(t *testing.T) {
	p := TrainingPayload{EntityID: "DE", Trigger: "schedule", EnqueuedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	assert.Equal(t, "train:DE", p.UniqueID())
	require.NoError(t, p.Validate())
	require.ErrorIs(t, TrainingPayload{}.Validate(), ErrEntityRequired)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entity_id":"DE","trigger":"schedule","enqueued_at":"2024-01-02T03:04:05Z"}`, string(data))
}

func TestTrainingOptions(t *testing.T) {
	q := &QueueManager{queue: "lossforecast:training"}

	opts := q.trainingOptions(TrainingPayload{EntityID: "DE"}, asynq.MaxRetry(5))

	values := make(map[asynq.OptionType]interface{})
	for _, o := range opts {
		values[o.Type()] = o.Value()
	}

	assert.Equal(t, "train:DE", values[asynq.TaskIDOpt])
	assert.Equal(t, "lossforecast:training", values[asynq.QueueOpt])
	assert.Equal(t, 5, values[asynq.MaxRetryOpt], "caller options override defaults")
}
