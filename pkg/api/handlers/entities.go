package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/gofiber/fiber/v3"
)

// ListEntities handles GET /api/v1/entities
func (s *Server) ListEntities(c fiber.Ctx) error {
	entities, err := s.backend.Entities(c.Context())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"entities": entities,
		"total":    len(entities),
	})
}

// GetForecast handles GET /api/v1/entities/:id/forecast?horizon=&scenario=
func (s *Server) GetForecast(c fiber.Ctx) error {
	horizon, err := s.horizon(c.Query("horizon"))
	if err != nil {
		return err
	}

	scenario, err := s.backend.ParseScenario(c.Query("scenario"))
	if err != nil {
		return ErrInvalidScenario
	}

	result, err := s.backend.Forecast(c.Context(), c.Params("id"), horizon, scenario)
	if err != nil {
		return s.forecastError(err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// horizon parses the horizon parameter; empty means the default
func (s *Server) horizon(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.limits.DefaultHorizon, nil
	}

	h, err := strconv.Atoi(raw)
	if err != nil || h < 1 || h > s.limits.MaxHorizon {
		return 0, ErrInvalidHorizon
	}

	return h, nil
}

func (s *Server) forecastError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrUnknownEntity):
		return ErrEntityNotFound
	case errors.Is(err, pipeline.ErrNoModel):
		return ErrNoForecast
	case errors.Is(err, forecast.ErrInvalidHorizon):
		return ErrInvalidHorizon
	case errors.Is(err, forecast.ErrUnknownScenario):
		return ErrInvalidScenario
	case errors.Is(err, forecast.ErrPrediction):
		s.log.WithError(err).Warn("Forecast failed")
		return ErrPredictionFailed
	}

	return err
}
