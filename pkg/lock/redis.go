package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// errHeld signals a retryable acquisition attempt
var errHeld = errors.New("lock held by another owner")

// release deletes the key only while it still carries the caller's token
//
//nolint:gochecknoglobals // compiled once, shared by all leases
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process connected to the same Redis
type Redis struct {
	log    logrus.FieldLogger
	client *redis.Client
	prefix string
	ttl    time.Duration

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewRedis creates a Redis locker. Keys are stored as "<prefix>:lock:<key>"
// and expire after ttl unless released first.
func NewRedis(log logrus.FieldLogger, client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		log:             log.WithField("component", "lock"),
		client:          client,
		prefix:          prefix,
		ttl:             ttl,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     2 * time.Second,
	}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return "lock:" + key
	}

	return r.prefix + ":lock:" + key
}

func (r *Redis) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = 0

	return backoff.WithContext(b, ctx)
}

// Lock retries SET NX with exponential backoff until it succeeds or ctx ends
func (r *Redis) Lock(ctx context.Context, key string) (Lease, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	token := uuid.New().String()
	redisKey := r.key(key)
	started := time.Now()

	acquire := func() error {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			r.log.WithError(err).WithField("key", key).Debug("Failed to acquire lock")
			return err
		}

		if !ok {
			return errHeld
		}

		return nil
	}

	if err := backoff.Retry(acquire, r.backOff(ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("lock %s: %w", key, ctxErr)
		}

		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	r.log.WithFields(logrus.Fields{
		"key":   key,
		"token": token,
		"wait":  time.Since(started),
	}).Debug("Acquired lock")

	return &redisLease{locker: r, key: redisKey, token: token}, nil
}

type redisLease struct {
	locker *Redis
	key    string
	token  string
}

func (l *redisLease) Unlock(ctx context.Context) error {
	deleted, err := release.Run(ctx, l.locker.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.key, err)
	}

	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrLeaseLost, l.key)
	}

	return nil
}

var _ Locker = (*Redis)(nil)
