// Package pipeline keeps the feature table and the trained models ready and
// answers forecast requests against them
package pipeline

import "errors"

var (
	// ErrRawPathRequired is returned when no raw data path is configured
	ErrRawPathRequired = errors.New("data.rawPath is required")
	// ErrFeaturesPathRequired is returned when no feature table path is configured
	ErrFeaturesPathRequired = errors.New("data.featuresPath is required")
)

// Config locates the raw input and the persisted feature table
type Config struct {
	RawPath      string `yaml:"rawPath" default:"data/Merged_Energy_Losses.csv"`
	FeaturesPath string `yaml:"featuresPath" default:"data/features_for_ml.csv"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RawPath == "" {
		return ErrRawPathRequired
	}

	if c.FeaturesPath == "" {
		return ErrFeaturesPathRequired
	}

	return nil
}
