// Package engine wires the lossforecast services together
package engine

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/lossforecast/pkg/api"
	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/redis"
	"github.com/ethpandaops/lossforecast/pkg/scheduler"
	"github.com/ethpandaops/lossforecast/pkg/selection"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/ethpandaops/lossforecast/pkg/worker"
)

var (
	// ErrWorkerRequiresRedis is returned when the worker is enabled without a Redis URL
	ErrWorkerRequiresRedis = errors.New("worker requires redis.url")
	// ErrCovariateMismatch is returned when features and forecast disagree on the projected covariates
	ErrCovariateMismatch = errors.New("forecast.covariatePrefixes must be a subset of features.covariatePrefixes")
)

// Config represents the complete engine configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info" validate:"oneof=panic fatal warn info debug trace"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	// Input and intermediate files
	Data pipeline.Config `yaml:"data"`

	// Modelling
	Features  features.Config  `yaml:"features"`
	Selection selection.Config `yaml:"selection"`
	Forecast  forecast.Config  `yaml:"forecast"`
	Training  training.Config  `yaml:"training"`

	// Dependencies
	Store artifact.Config `yaml:"store"`
	Redis redis.Config    `yaml:"redis"`

	// Services
	Worker    worker.Config    `yaml:"worker"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	API       api.Config       `yaml:"api"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validators := []struct {
		name     string
		validate func() error
	}{
		{"data", c.Data.Validate},
		{"features", c.Features.Validate},
		{"selection", c.Selection.Validate},
		{"forecast", c.Forecast.Validate},
		{"training", c.Training.Validate},
		{"store", c.Store.Validate},
		{"redis", c.Redis.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"api", c.API.Validate},
	}

	for _, v := range validators {
		if err := v.validate(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}

	if c.Worker.Enabled {
		if !c.Redis.Enabled() {
			return ErrWorkerRequiresRedis
		}

		if err := c.Worker.Validate(); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
	}

	for _, prefix := range c.Forecast.CovariatePrefixes {
		if !features.HasCovariatePrefix(prefix, c.Features.CovariatePrefixes) {
			return fmt.Errorf("%w: %q", ErrCovariateMismatch, prefix)
		}
	}

	return nil
}
