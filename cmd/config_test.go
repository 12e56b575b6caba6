package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing default file yields defaults", func(t *testing.T) {
		cfg, err := loadConfig(filepath.Join(dir, "config.yaml"), false)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Logging)
		assert.Equal(t, 5, cfg.API.DefaultHorizon)
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(dir, "nope.yaml"), true)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
logging: debug
forecast:
  rate: 0.05
training:
  concurrency: 8
`), 0o600))

		cfg, err := loadConfig(path, true)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging)
		assert.InDelta(t, 0.05, cfg.Forecast.Rate, 1e-12)
		assert.Equal(t, 8, cfg.Training.Concurrency)
		assert.Equal(t, "data/models.db", cfg.Store.Path)
		require.NoError(t, cfg.Validate())
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging: ["), 0o600))

		_, err := loadConfig(path, true)
		require.Error(t, err)
	})
}
