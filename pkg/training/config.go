// Package training fits and persists one model per entity
package training

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is below 1
	ErrInvalidConcurrency = errors.New("training concurrency must be at least 1")
	// ErrInvalidTimeout is returned for a non-positive pass timeout
	ErrInvalidTimeout = errors.New("training timeout must be positive")
	// ErrInvalidLockTTL is returned for a non-positive entity lock lease
	ErrInvalidLockTTL = errors.New("training lockTTL must be positive")
)

// Config configures a batch training pass
type Config struct {
	// Concurrency is the number of entities trained in parallel
	Concurrency int `yaml:"concurrency" default:"4"`
	// Timeout bounds a whole pass; entities not finished by then fail
	Timeout time.Duration `yaml:"timeout" default:"10m"`
	// LockTTL is the lease of the per-entity Redis lock
	LockTTL time.Duration `yaml:"lockTTL" default:"5m"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.LockTTL <= 0 {
		return ErrInvalidLockTTL
	}

	return nil
}
