// Package worker runs the Asynq server that consumes training tasks
package worker

import (
	"context"
	"fmt"

	"github.com/ethpandaops/lossforecast/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

type service struct {
	config   *Config
	log      logrus.FieldLogger
	queue    string
	redisOpt asynq.RedisClientOpt
	handler  *tasks.TaskHandler

	server *asynq.Server
}

// NewService creates a worker consuming queue
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt asynq.RedisClientOpt, queue string, handler *tasks.TaskHandler) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:      log.WithField("service", "worker"),
		config:   cfg,
		queue:    queue,
		redisOpt: redisOpt,
		handler:  handler,
	}, nil
}

// Start begins processing tasks in the background
func (s *service) Start(_ context.Context) error {
	srv := asynq.NewServer(s.redisOpt, asynq.Config{
		Concurrency:     s.config.Concurrency,
		Queues:          map[string]int{s.queue: 10},
		ShutdownTimeout: s.config.ShutdownTimeout,
		Logger:          &asynqLogger{log: s.log},
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range s.handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	s.server = srv

	s.log.WithFields(logrus.Fields{
		"queue":       s.queue,
		"concurrency": s.config.Concurrency,
	}).Info("Worker service started")

	return nil
}

// Stop waits for in-flight tasks up to the shutdown timeout
func (s *service) Stop() error {
	if s.server != nil {
		s.server.Shutdown()
	}

	s.log.Info("Worker service stopped")

	return nil
}

// asynqLogger routes Asynq's internal logging through logrus
type asynqLogger struct {
	log logrus.FieldLogger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(args...) }
