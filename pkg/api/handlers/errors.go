package handlers

import "github.com/gofiber/fiber/v3"

var (
	// ErrEntityNotFound is returned for an entity absent from the feature table
	ErrEntityNotFound = fiber.NewError(fiber.StatusNotFound, "entity not found")
	// ErrNoForecast is returned when the entity has no trained model
	ErrNoForecast = fiber.NewError(fiber.StatusNotFound, "no forecast available")
	// ErrInvalidHorizon is returned for a horizon outside the allowed range
	ErrInvalidHorizon = fiber.NewError(fiber.StatusBadRequest, "horizon must be an integer between 1 and the maximum horizon")
	// ErrInvalidScenario is returned for an unknown scenario name
	ErrInvalidScenario = fiber.NewError(fiber.StatusBadRequest, "unknown scenario, expected constant, growth or decay")
	// ErrInvalidLimit is returned for a malformed limit parameter
	ErrInvalidLimit = fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
	// ErrPredictionFailed is returned when the model failed during the rollout
	ErrPredictionFailed = fiber.NewError(fiber.StatusInternalServerError, "prediction failed")
)
