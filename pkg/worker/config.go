package worker

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrQueueRequired is returned when no queue name is configured
	ErrQueueRequired = errors.New("worker queue is required")
)

// Config contains worker-specific settings
type Config struct {
	Enabled         bool          `yaml:"enabled"`
	Concurrency     int           `yaml:"concurrency" default:"4"`
	Queue           string        `yaml:"queue" default:"training"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"30s"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Queue == "" {
		return ErrQueueRequired
	}

	return nil
}
