// Package features turns per-entity yearly observations into the causal
// lag, rolling-mean and trend features used for model selection and forecasting
package features

import (
	"errors"
	"strings"
)

var (
	// ErrColumnNameRequired is returned when one of the identity/target column names is empty
	ErrColumnNameRequired = errors.New("entity, year and target column names are required")
	// ErrCovariatePrefixRequired is returned when no covariate prefix is configured
	ErrCovariatePrefixRequired = errors.New("at least one covariate prefix is required")
)

// Config names the columns of the raw observation table
type Config struct {
	EntityColumn      string   `yaml:"entityColumn" default:"Country_ID"`
	YearColumn        string   `yaml:"yearColumn" default:"Year"`
	TargetColumn      string   `yaml:"targetColumn" default:"Total losses"`
	LabelColumn       string   `yaml:"labelColumn" default:"Country_name"`
	CovariatePrefixes []string `yaml:"covariatePrefixes" default:"[\"PEC\",\"FEC\"]"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.EntityColumn == "" || c.YearColumn == "" || c.TargetColumn == "" {
		return ErrColumnNameRequired
	}

	if len(c.CovariatePrefixes) == 0 {
		return ErrCovariatePrefixRequired
	}

	return nil
}

// IsCovariate reports whether a column name carries a covariate prefix
func (c *Config) IsCovariate(name string) bool {
	return HasCovariatePrefix(name, c.CovariatePrefixes)
}

// HasCovariatePrefix reports whether name starts with any of the prefixes
func HasCovariatePrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}
