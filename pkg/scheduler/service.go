package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/observability"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the scheduler
type Service interface {
	// Start registers the retrain schedule and starts the cron loop
	Start(ctx context.Context) error

	// Stop cancels a running pass and waits for it to return
	Stop() error
}

type service struct {
	log       logrus.FieldLogger
	cfg       *Config
	retrainer Retrainer
	leader    Leader

	cron   *cron.Cron
	ctx    context.Context //nolint:containedctx // parent of every scheduled pass
	cancel context.CancelFunc

	mu   sync.Mutex
	runs int
}

// NewService creates a scheduler firing retrainer on the configured schedule
func NewService(log logrus.FieldLogger, cfg *Config, retrainer Retrainer, leader Leader) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return newService(log, cfg, retrainer, leader), nil
}

func newService(log logrus.FieldLogger, cfg *Config, retrainer Retrainer, leader Leader) *service {
	if leader == nil {
		leader = AlwaysLeader{}
	}

	return &service{
		log:       log.WithField("service", "scheduler"),
		cfg:       cfg,
		retrainer: retrainer,
		leader:    leader,
	}
}

// Start initializes and starts the scheduler service
func (s *service) Start(ctx context.Context) error {
	schedule, err := cron.ParseStandard(s.cfg.Retrain)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.log))),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	s.cron.Start()

	s.log.WithFields(logrus.Fields{
		"schedule": s.cfg.Retrain,
		"next":     schedule.Next(time.Now().UTC()),
	}).Info("Scheduler service started")

	return nil
}

// Stop gracefully shuts down the scheduler service
func (s *service) Stop() error {
	if s.cron == nil {
		return nil
	}

	running := s.cron.Stop()
	s.cancel()
	<-running.Done()

	s.log.Info("Scheduler service stopped")

	return nil
}

// tick runs one scheduled pass if this instance leads
func (s *service) tick() {
	if !s.leader.IsLeader() {
		s.log.Debug("Not the leader, skipping scheduled retrain")
		return
	}

	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	if _, err := s.retrainer.Retrain(ctx, training.TriggerSchedule); err != nil {
		s.log.WithError(err).Error("Scheduled retrain failed")
		observability.RecordError("scheduler", "retrain")
	}
}
