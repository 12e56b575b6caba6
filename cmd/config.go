package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/lossforecast/pkg/engine"
	"gopkg.in/yaml.v3"
)

// loadConfig loads the engine configuration from a YAML file. A missing file
// yields the defaults unless the path was given explicitly.
func loadConfig(path string, explicit bool) (*engine.Config, error) {
	config := &engine.Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return config, nil
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, nil
}
