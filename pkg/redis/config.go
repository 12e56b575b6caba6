// Package redis holds the optional Redis connection used for distributed
// locks and training tasks
package redis

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Define static errors
var (
	ErrPrefixInvalid = errors.New("redis prefix must not contain ':'")
)

// Config holds Redis client configuration. An empty URL disables Redis.
type Config struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix" default:"lossforecast"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for _, r := range c.Prefix {
		if r == ':' {
			return ErrPrefixInvalid
		}
	}

	if c.URL == "" {
		return nil
	}

	if _, err := redis.ParseURL(c.URL); err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	return nil
}

// Enabled reports whether a Redis URL is configured
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// Options parses the configured URL
func (c *Config) Options() (*redis.Options, error) {
	return redis.ParseURL(c.URL)
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}

// PrefixQueue adds the configured prefix to an Asynq queue name
func (c *Config) PrefixQueue(queue string) string {
	if c.Prefix == "" {
		return queue
	}

	return fmt.Sprintf("%s:%s", c.Prefix, queue)
}

// AsynqOptions converts go-redis options to Asynq connection options
func AsynqOptions(opt *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:      opt.Network,
		Addr:         opt.Addr,
		Username:     opt.Username,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  opt.DialTimeout,
		ReadTimeout:  opt.ReadTimeout,
		WriteTimeout: opt.WriteTimeout,
		PoolSize:     opt.PoolSize,
		TLSConfig:    opt.TLSConfig,
	}
}
