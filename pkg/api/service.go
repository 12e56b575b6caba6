package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/api/handlers"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"
)

// Service defines the API service interface
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

type service struct {
	config  *Config
	handler *handlers.Server
	server  *http.Server
	log     logrus.FieldLogger
}

// NewService creates the API service
func NewService(log logrus.FieldLogger, cfg *Config, backend handlers.Backend, retrainer handlers.Retrainer) Service {
	return &service{
		config: cfg,
		handler: handlers.NewServer(log, backend, retrainer, handlers.Limits{
			DefaultHorizon: cfg.DefaultHorizon,
			MaxHorizon:     cfg.MaxHorizon,
		}),
		log: log.WithField("service", "api"),
	}
}

// NewApp builds the Fiber app with every route registered
func NewApp(log logrus.FieldLogger, server *handlers.Server) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		AppName:      "lossforecast API",
	})

	setupMiddleware(app, log)

	server.Register(app.Group("/api/v1"))

	return app
}

// Start initializes and starts the API server
func (s *service) Start(_ context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API service is disabled")
		return nil
	}

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           adaptor.FiberApp(NewApp(s.log, s.handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.WithField("addr", s.config.Addr).Info("Starting API server")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("API server failed")
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server
func (s *service) Stop() error {
	if s.server == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
