// Package selection picks, per entity, the model family with the lowest
// forward-chaining cross-validation error and refits it on the full history
package selection

import (
	"errors"
)

var (
	// ErrInvalidFolds is returned when fewer than two folds are configured
	ErrInvalidFolds = errors.New("folds must be at least 2")
	// ErrMinObservationsTooLow is returned when the history threshold cannot fill every fold
	ErrMinObservationsTooLow = errors.New("minObservations must exceed folds")
	// ErrInvalidAlpha is returned for a negative ridge penalty
	ErrInvalidAlpha = errors.New("ridgeAlpha must not be negative")
	// ErrInvalidTrees is returned when the forest has no trees
	ErrInvalidTrees = errors.New("trees must be at least 1")
)

// Config configures the candidate models and the cross-validation protocol
type Config struct {
	MinObservations int     `yaml:"minObservations" default:"8"`
	Folds           int     `yaml:"folds" default:"3"`
	RidgeAlpha      float64 `yaml:"ridgeAlpha" default:"1.0"`
	Trees           int     `yaml:"trees" default:"400"`
	Seed            uint64  `yaml:"seed" default:"42"`
	MinSamplesSplit int     `yaml:"minSamplesSplit" default:"2"`
	// MaxDepth of 0 grows trees until leaves are pure
	MaxDepth int `yaml:"maxDepth" default:"0"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Folds < 2 {
		return ErrInvalidFolds
	}

	if c.MinObservations <= c.Folds {
		return ErrMinObservationsTooLow
	}

	if c.RidgeAlpha < 0 {
		return ErrInvalidAlpha
	}

	if c.Trees < 1 {
		return ErrInvalidTrees
	}

	return nil
}
