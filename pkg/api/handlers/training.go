package handlers

import (
	"errors"
	"strconv"

	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/gofiber/fiber/v3"
)

// GetSummary handles GET /api/v1/summary
func (s *Server) GetSummary(c fiber.Ctx) error {
	rows, err := s.backend.Summary(c.Context())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"models": rows,
		"total":  len(rows),
	})
}

// ListRuns handles GET /api/v1/runs?limit=
func (s *Server) ListRuns(c fiber.Ctx) error {
	limit := 20

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ErrInvalidLimit
		}

		limit = n
	}

	runs, err := s.backend.Runs(c.Context(), limit)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"runs":  runs,
		"total": len(runs),
	})
}

// StartTraining handles POST /api/v1/training
func (s *Server) StartTraining(c fiber.Ctx) error {
	outcome, err := s.retrainer.Retrain(c.Context(), training.TriggerAPI)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if outcome.Report == nil {
		status = fiber.StatusAccepted
	}

	return c.Status(status).JSON(outcome)
}

// TrainEntity handles POST /api/v1/entities/:id/training
func (s *Server) TrainEntity(c fiber.Ctx) error {
	result, err := s.backend.TrainEntity(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownEntity) {
			return ErrEntityNotFound
		}

		return err
	}

	status := fiber.StatusOK
	if result.Status == training.StatusFailed {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(result)
}
