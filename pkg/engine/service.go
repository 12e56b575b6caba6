package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"sync/atomic"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/api"
	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/lock"
	"github.com/ethpandaops/lossforecast/pkg/observability"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	redisconf "github.com/ethpandaops/lossforecast/pkg/redis"
	"github.com/ethpandaops/lossforecast/pkg/scheduler"
	"github.com/ethpandaops/lossforecast/pkg/selection"
	"github.com/ethpandaops/lossforecast/pkg/tasks"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/ethpandaops/lossforecast/pkg/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const leaderKey = "scheduler:leader"

// Service owns the pipeline and every long-running component around it
type Service struct {
	config *Config
	log    logrus.FieldLogger

	store     artifact.Store
	pipeline  *pipeline.Pipeline
	retrainer scheduler.Retrainer
	queue     *tasks.QueueManager
	elector   *scheduler.Elector
	scheduler scheduler.Service
	worker    worker.Service
	api       api.Service

	// Servers
	healthServer *http.Server
	pprofServer  *http.Server
	ready        atomic.Bool

	redisClient *redis.Client
}

// NewService validates cfg and builds every component. Nothing is started;
// CLI commands use Pipeline directly and call Stop when done.
func NewService(ctx context.Context, log logrus.FieldLogger, cfg *Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := artifact.Open(ctx, log, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	s := &Service{
		config: cfg,
		log:    log,
		store:  store,
	}

	if err := s.build(); err != nil {
		_ = s.Stop()

		return nil, err
	}

	return s, nil
}

func (s *Service) build() error {
	cfg := s.config

	var (
		locker   lock.Locker = lock.NewLocal()
		redisOpt *redis.Options
	)

	if cfg.Redis.Enabled() {
		opts, err := cfg.Redis.Options()
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}

		redisOpt = opts
		s.redisClient = redis.NewClient(opts)
		locker = lock.NewRedis(s.log, s.redisClient, cfg.Redis.Prefix, cfg.Training.LockTTL)
	}

	trainer := training.NewService(s.log, cfg.Training, selection.NewSelector(s.log, cfg.Selection), s.store, locker)
	engine := forecast.NewEngine(s.log, cfg.Forecast)
	s.pipeline = pipeline.New(s.log, cfg.Data, cfg.Features, trainer, s.store, engine)

	var leader scheduler.Leader = scheduler.AlwaysLeader{}

	if redisOpt != nil {
		asynqOpt := redisconf.AsynqOptions(redisOpt)
		queue := cfg.Redis.PrefixQueue(cfg.Worker.Queue)

		s.queue = tasks.NewQueueManager(asynqOpt, queue)
		s.retrainer = scheduler.NewDispatch(s.log, s.pipeline, s.queue)

		if cfg.Worker.Enabled {
			w, err := worker.NewService(s.log, &cfg.Worker, asynqOpt, queue, tasks.NewTaskHandler(s.log, s.pipeline))
			if err != nil {
				return fmt.Errorf("failed to create worker service: %w", err)
			}

			s.worker = w
		}

		if cfg.Scheduler.Enabled {
			s.elector = scheduler.NewElector(s.log, s.redisClient, cfg.Redis.PrefixKey(leaderKey),
				cfg.Scheduler.LeaderTTL, cfg.Scheduler.LeaderRenew)
			leader = s.elector
		}
	} else {
		s.retrainer = scheduler.NewLocal(s.pipeline)
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.NewService(s.log, &cfg.Scheduler, s.retrainer, leader)
		if err != nil {
			return fmt.Errorf("failed to create scheduler service: %w", err)
		}

		s.scheduler = sched
	}

	if cfg.API.Enabled {
		s.api = api.NewService(s.log, &cfg.API, s.pipeline, s.retrainer)
	}

	return nil
}

// Pipeline returns the feature, training and forecast pipeline
func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Retrainer returns the retrainer used by the scheduler and the API
func (s *Service) Retrainer() scheduler.Retrainer {
	return s.retrainer
}

// Start prepares the data and starts every enabled component
func (s *Service) Start(ctx context.Context) error {
	s.log.Info("Starting lossforecast engine...")

	observability.StartMetricsServer(s.log, s.config.MetricsAddr)

	if s.config.HealthCheckAddr != "" {
		s.startHealthCheck()
	}

	if s.config.PProfAddr != "" {
		s.startPProf()
	}

	if err := s.pipeline.EnsureReady(ctx); err != nil {
		return fmt.Errorf("failed to prepare pipeline: %w", err)
	}

	if s.elector != nil {
		if err := s.elector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start leader election: %w", err)
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if s.worker != nil {
		if err := s.worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	if s.api != nil {
		if err := s.api.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API service: %w", err)
		}
	}

	s.ready.Store(true)
	s.log.Info("Lossforecast engine started successfully")

	return nil
}

// Stop shuts every component down in reverse dependency order. Only a
// failure to close the artifact store is returned.
func (s *Service) Stop() error {
	s.log.Debug("Shutting down engine...")
	s.ready.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if stopFunc == nil {
			return
		}
		if err := stopFunc(); err != nil {
			s.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// 1. Stop creating passes
	if s.scheduler != nil {
		stopService("scheduler service", s.scheduler.Stop)
	}
	if s.elector != nil {
		stopService("leader election", s.elector.Stop)
	}

	// 2. Finish in-flight tasks and requests
	if s.worker != nil {
		stopService("worker service", s.worker.Stop)
	}
	if s.api != nil {
		stopService("API service", s.api.Stop)
	}

	// 3. Close Redis (now safe, nothing is using it)
	if s.queue != nil {
		stopService("task queue", s.queue.Close)
	}
	if s.redisClient != nil {
		stopService("Redis client", s.redisClient.Close)
	}

	// 4. HTTP servers
	if s.healthServer != nil {
		stopService("health check server", func() error { return s.healthServer.Shutdown(ctx) })
	}
	if s.pprofServer != nil {
		stopService("pprof server", func() error { return s.pprofServer.Shutdown(ctx) })
	}
	stopService("metrics server", func() error { return observability.StopMetricsServer(ctx) })

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close artifact store")
			return err
		}
	}

	return nil
}

func (s *Service) startHealthCheck() {
	s.log.WithField("addr", s.config.HealthCheckAddr).Info("Starting health check server")

	s.healthServer = &http.Server{
		Addr:              s.config.HealthCheckAddr,
		Handler:           s.healthHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Health check server failed")
		}
	}()
}

// healthHandler serves /health always and /ready once Start has completed
func (s *Service) healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

func (s *Service) startPProf() {
	s.log.WithField("addr", s.config.PProfAddr).Info("Starting pprof server")

	s.pprofServer = &http.Server{
		Addr:              s.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := s.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Pprof server failed")
		}
	}()
}
