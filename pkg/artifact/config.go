package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPathRequired is returned when no database path is configured
	ErrPathRequired = errors.New("store path is required")
	// ErrNegativeCacheSize is returned when cacheSize is below zero
	ErrNegativeCacheSize = errors.New("cacheSize must not be negative")
)

// Config configures artifact persistence
type Config struct {
	// Path is the SQLite database file, or ":memory:"
	Path string `yaml:"path" default:"data/models.db"`
	// CacheSize is the number of decoded artifacts kept in memory; 0 disables caching
	CacheSize int `yaml:"cacheSize" default:"256"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Path == "" {
		return ErrPathRequired
	}

	if c.CacheSize < 0 {
		return ErrNegativeCacheSize
	}

	return nil
}

// Open opens the configured store, wrapped in a cache when enabled
func Open(ctx context.Context, log logrus.FieldLogger, cfg Config) (Store, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := OpenSQLite(ctx, log, cfg.Path)
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize == 0 {
		return db, nil
	}

	cached, err := NewCachedStore(db, cfg.CacheSize)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return cached, nil
}
