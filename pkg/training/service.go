package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/ethpandaops/lossforecast/pkg/lock"
	"github.com/ethpandaops/lossforecast/pkg/observability"
	"github.com/ethpandaops/lossforecast/pkg/regression"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of training one entity
type Status string

const (
	// StatusTrained means a new artifact was stored
	StatusTrained Status = "trained"
	// StatusSkipped means the history was too short; no artifact remains
	StatusSkipped Status = "skipped"
	// StatusFailed means fitting or persisting raised an error
	StatusFailed Status = "failed"
)

// Trigger names what started a training pass
const (
	TriggerCLI       = "cli"
	TriggerAPI       = "api"
	TriggerSchedule  = "schedule"
	TriggerAutopilot = "autopilot"
	TriggerTask      = "task"
)

// Fitter selects and refits a model for one entity. A nil artifact without
// error means the history is too short.
type Fitter interface {
	SelectAndFit(ctx context.Context, series *features.Series) (*artifact.Artifact, error)
}

// Result is the outcome of one entity
type Result struct {
	EntityID string          `json:"entity_id"`
	Status   Status          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Kind     regression.Kind `json:"model,omitempty"`
	CVMAE    float64         `json:"cv_mae,omitempty"`
	Samples  int             `json:"n_samples"`
	Duration time.Duration   `json:"duration"`
}

// Report is the outcome of a batch pass
type Report struct {
	Run     artifact.Run          `json:"run"`
	Results []Result              `json:"results"`
	Summary []artifact.SummaryRow `json:"summary"`
}

// Counts returns the number of trained, skipped and failed entities
func (r *Report) Counts() (trained, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusTrained:
			trained++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}

	return trained, skipped, failed
}

// Service trains entities and keeps the artifact store current
type Service struct {
	log    logrus.FieldLogger
	cfg    Config
	fitter Fitter
	store  artifact.Store
	locker lock.Locker
	now    func() time.Time
}

// NewService creates a training service
func NewService(log logrus.FieldLogger, cfg Config, fitter Fitter, store artifact.Store, locker lock.Locker) *Service {
	return &Service{
		log:    log.WithField("service", "training"),
		cfg:    cfg,
		fitter: fitter,
		store:  store,
		locker: locker,
		now:    time.Now,
	}
}

// TrainEntity fits one entity while holding its writer lock. Errors are
// reported in the result, never returned.
func (s *Service) TrainEntity(ctx context.Context, series *features.Series) Result {
	started := s.now()
	result := Result{EntityID: series.EntityID, Samples: series.Len()}

	log := s.log.WithField("entity", series.EntityID)

	fail := func(err error) Result {
		result.Status = StatusFailed
		result.Reason = err.Error()
		result.Duration = time.Since(started)

		log.WithError(err).Warn("Training failed")
		observability.RecordTraining(string(StatusFailed), "", 0)
		observability.RecordError("training", "entity")

		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	lease, err := s.locker.Lock(ctx, series.EntityID)
	if err != nil {
		return fail(fmt.Errorf("acquire lock: %w", err))
	}

	observability.RecordLockWait(time.Since(started).Seconds())

	defer func() {
		if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("Failed to release lock")
		}
	}()

	art, err := s.fitter.SelectAndFit(ctx, series)
	if err != nil {
		return fail(err)
	}

	if art == nil {
		// A model from an earlier, longer history must not outlive it
		if err := s.store.Delete(ctx, series.EntityID); err != nil {
			return fail(fmt.Errorf("delete stale artifact: %w", err))
		}

		result.Status = StatusSkipped
		result.Reason = "insufficient history"
		result.Duration = time.Since(started)

		log.WithField("samples", result.Samples).Info("Skipped entity")
		observability.RecordTraining(string(StatusSkipped), "", 0)
		observability.ForgetEntity(series.EntityID)

		return result
	}

	if err := s.store.Put(ctx, art); err != nil {
		return fail(fmt.Errorf("store artifact: %w", err))
	}

	result.Status = StatusTrained
	result.Kind = art.Kind
	result.CVMAE = art.CVMAE
	result.Duration = time.Since(started)

	log.WithFields(logrus.Fields{
		"algorithm": art.Kind,
		"cv_mae":    art.CVMAE,
		"samples":   art.Samples,
	}).Info("Trained entity")

	observability.RecordTraining(string(StatusTrained), string(art.Kind), result.Duration.Seconds())
	observability.RecordEntityError(series.EntityID, string(art.Kind), art.CVMAE)

	return result
}

// TrainAll trains every entity of the table. Per-entity failures, including
// those caused by the pass timeout, are reported in the results; only store
// errors while recording the run are returned.
func (s *Service) TrainAll(ctx context.Context, table *features.Table, trigger string) (*Report, error) {
	run := artifact.Run{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: s.now().UTC(),
	}

	series := table.Series()
	results := make([]Result, len(series))

	s.log.WithFields(logrus.Fields{
		"run":         run.ID,
		"trigger":     trigger,
		"entities":    len(series),
		"concurrency": s.cfg.Concurrency,
	}).Info("Starting training pass")

	passCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	for i := range series {
		g.Go(func() error {
			results[i] = s.TrainEntity(passCtx, &series[i])
			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].EntityID < results[j].EntityID
	})

	report := &Report{Run: run, Results: results}
	report.Run.Trained, report.Run.Skipped, report.Run.Failed = report.Counts()
	report.Run.FinishedAt = s.now().UTC()

	if err := s.store.RecordRun(ctx, report.Run); err != nil {
		return report, fmt.Errorf("record run: %w", err)
	}

	summary, err := s.Summary(ctx)
	if err != nil {
		return report, err
	}

	report.Summary = summary

	observability.RecordTrainingRun(trigger)

	s.log.WithFields(logrus.Fields{
		"run":     run.ID,
		"trained": report.Run.Trained,
		"skipped": report.Run.Skipped,
		"failed":  report.Run.Failed,
		"elapsed": report.Run.FinishedAt.Sub(report.Run.StartedAt),
	}).Info("Training pass complete")

	if errors.Is(passCtx.Err(), context.DeadlineExceeded) {
		s.log.WithField("timeout", s.cfg.Timeout).Warn("Training pass hit its timeout")
	}

	return report, nil
}

// Summary lists the stored models by ascending CV error
func (s *Service) Summary(ctx context.Context) ([]artifact.SummaryRow, error) {
	artifacts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	return artifact.BuildSummary(artifacts), nil
}
