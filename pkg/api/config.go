// Package api serves forecasts and training diagnostics over HTTP
package api

import "errors"

var (
	// ErrAPIAddrRequired is returned when API is enabled but no address is configured
	ErrAPIAddrRequired = errors.New("api address is required when API is enabled")
	// ErrInvalidHorizonBounds is returned when the default horizon is outside 1..maxHorizon
	ErrInvalidHorizonBounds = errors.New("api defaultHorizon must be between 1 and maxHorizon")
)

// Config represents API service configuration
type Config struct {
	Enabled        bool   `yaml:"enabled" default:"true"`
	Addr           string `yaml:"addr" default:":8080"`
	DefaultHorizon int    `yaml:"defaultHorizon" default:"5"`
	MaxHorizon     int    `yaml:"maxHorizon" default:"10"`
}

// Validate validates the API configuration
func (c *Config) Validate() error {
	if c.Enabled && c.Addr == "" {
		return ErrAPIAddrRequired
	}

	if c.DefaultHorizon < 1 || c.DefaultHorizon > c.MaxHorizon {
		return ErrInvalidHorizonBounds
	}

	return nil
}
