// Package scheduler triggers periodic retraining passes. With Redis, a
// leader election makes sure only one instance fires each tick.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidSchedule is returned for an unparseable retrain schedule
	ErrInvalidSchedule = errors.New("invalid retrain schedule")
	// ErrInvalidLease is returned when the renew interval is not shorter than the lease
	ErrInvalidLease = errors.New("leader renew interval must be shorter than the lease TTL")
)

// Config defines scheduler configuration
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Retrain is a standard cron expression or descriptor such as "@every 24h"
	Retrain string `yaml:"retrain" default:"@every 24h"`
	// RunTimeout bounds a single scheduled pass or dispatch
	RunTimeout time.Duration `yaml:"runTimeout" default:"30m"`
	// LeaderTTL is the lifetime of the leadership lease in Redis
	LeaderTTL time.Duration `yaml:"leaderTTL" default:"10s"`
	// LeaderRenew is how often the leader renews, and followers retry
	LeaderRenew time.Duration `yaml:"leaderRenew" default:"3s"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.Retrain); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, c.Retrain, err)
	}

	if c.LeaderRenew <= 0 || c.LeaderRenew >= c.LeaderTTL {
		return ErrInvalidLease
	}

	return nil
}
