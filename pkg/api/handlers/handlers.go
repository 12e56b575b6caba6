// Package handlers implements the request handlers of the lossforecast API
package handlers

import (
	"context"

	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/scheduler"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Backend answers read requests and single-entity training
type Backend interface {
	Entities(ctx context.Context) ([]pipeline.Entity, error)
	Summary(ctx context.Context) ([]artifact.SummaryRow, error)
	Runs(ctx context.Context, limit int) ([]artifact.Run, error)
	Forecast(ctx context.Context, entityID string, horizon int, scenario forecast.Scenario) (*pipeline.Result, error)
	ParseScenario(name string) (forecast.Scenario, error)
	TrainEntity(ctx context.Context, entityID string) (training.Result, error)
}

// Retrainer starts a pass over every entity
type Retrainer interface {
	Retrain(ctx context.Context, trigger string) (*scheduler.Outcome, error)
}

// Limits bounds the forecast horizon
type Limits struct {
	DefaultHorizon int
	MaxHorizon     int
}

// Server holds the handler dependencies
type Server struct {
	backend   Backend
	retrainer Retrainer
	limits    Limits
	log       logrus.FieldLogger
}

// NewServer creates a new API server instance
func NewServer(log logrus.FieldLogger, backend Backend, retrainer Retrainer, limits Limits) *Server {
	return &Server{
		backend:   backend,
		retrainer: retrainer,
		limits:    limits,
		log:       log.WithField("component", "api.handlers"),
	}
}

// Register mounts every route on router
func (s *Server) Register(router fiber.Router) {
	router.Get("/entities", s.ListEntities)
	router.Get("/entities/:id/forecast", s.GetForecast)
	router.Post("/entities/:id/training", s.TrainEntity)
	router.Get("/summary", s.GetSummary)
	router.Get("/runs", s.ListRuns)
	router.Post("/training", s.StartTraining)
}
