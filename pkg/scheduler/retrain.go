package scheduler

import (
	"context"
	"fmt"

	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/ethpandaops/lossforecast/pkg/tasks"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Outcome describes a retraining request. Report is set for local passes,
// the counters for dispatched ones.
type Outcome struct {
	Report   *training.Report `json:"report,omitempty"`
	Enqueued int              `json:"enqueued"`
	Pending  int              `json:"already_pending"`
}

// Retrainer starts a retraining pass over every entity
type Retrainer interface {
	Retrain(ctx context.Context, trigger string) (*Outcome, error)
}

// Trainer runs a full pass in-process
type Trainer interface {
	Train(ctx context.Context, trigger string) (*training.Report, error)
}

// Local trains every entity in this process
type Local struct {
	trainer Trainer
}

// NewLocal creates an in-process retrainer
func NewLocal(trainer Trainer) *Local {
	return &Local{trainer: trainer}
}

// Retrain implements Retrainer
func (l *Local) Retrain(ctx context.Context, trigger string) (*Outcome, error) {
	report, err := l.trainer.Train(ctx, trigger)
	if err != nil {
		return nil, err
	}

	return &Outcome{Report: report}, nil
}

// FeatureSource provides the current feature table
type FeatureSource interface {
	Features(ctx context.Context) (*features.Table, error)
}

// Enqueuer publishes training tasks
type Enqueuer interface {
	EnqueueTraining(payload tasks.TrainingPayload, opts ...asynq.Option) (bool, error)
}

// Dispatch enqueues one training task per entity for the worker fleet
type Dispatch struct {
	log    logrus.FieldLogger
	source FeatureSource
	queue  Enqueuer
}

// NewDispatch creates a distributed retrainer
func NewDispatch(log logrus.FieldLogger, source FeatureSource, queue Enqueuer) *Dispatch {
	return &Dispatch{
		log:    log.WithField("component", "dispatch"),
		source: source,
		queue:  queue,
	}
}

// Retrain implements Retrainer. Entities with a task already pending are
// counted but not enqueued again.
func (d *Dispatch) Retrain(ctx context.Context, trigger string) (*Outcome, error) {
	ft, err := d.source.Features(ctx)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}

	for _, id := range ft.Entities() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		enqueued, err := d.queue.EnqueueTraining(tasks.TrainingPayload{EntityID: id, Trigger: trigger})
		if err != nil {
			return out, fmt.Errorf("dispatch %s: %w", id, err)
		}

		if enqueued {
			out.Enqueued++
		} else {
			out.Pending++
		}
	}

	d.log.WithFields(logrus.Fields{
		"trigger":  trigger,
		"enqueued": out.Enqueued,
		"pending":  out.Pending,
	}).Info("Dispatched training tasks")

	return out, nil
}

var (
	_ Retrainer = (*Local)(nil)
	_ Retrainer = (*Dispatch)(nil)
)
