package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Leader reports whether this instance should fire scheduled work
type Leader interface {
	IsLeader() bool
}

// AlwaysLeader is used when no Redis is configured and the process runs alone
type AlwaysLeader struct{}

// IsLeader implements Leader
func (AlwaysLeader) IsLeader() bool { return true }

// renewLease extends the lease only while this instance still owns it
//
//nolint:gochecknoglobals // compiled once
var renewLease = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// releaseLease deletes the lease only while this instance still owns it
//
//nolint:gochecknoglobals // compiled once
var releaseLease = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Elector holds a Redis lease on a single key; the holder is the leader
type Elector struct {
	log        logrus.FieldLogger
	redis      *redis.Client
	instanceID string
	key        string
	ttl        time.Duration
	renew      time.Duration

	mu       sync.RWMutex
	isLeader bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewElector creates an elector competing for key
func NewElector(log logrus.FieldLogger, client *redis.Client, key string, ttl, renew time.Duration) *Elector {
	return &Elector{
		log:        log.WithField("component", "election"),
		redis:      client,
		instanceID: uuid.New().String(),
		key:        key,
		ttl:        ttl,
		renew:      renew,
		done:       make(chan struct{}),
	}
}

// Start competes for leadership in the background. The first attempt is
// made before Start returns.
func (e *Elector) Start(ctx context.Context) error {
	e.log.WithField("instance_id", e.instanceID).Info("Starting leader election")

	e.setLeader(e.tryAcquire(ctx))

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

// Stop ends the election and releases the lease if held
func (e *Elector) Stop() error {
	e.stopOnce.Do(func() { close(e.done) })
	e.wg.Wait()

	if e.IsLeader() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := releaseLease.Run(ctx, e.redis, []string{e.key}, e.instanceID).Err(); err != nil {
			e.log.WithError(err).Warn("Failed to release leader lease")
		}

		e.setLeader(false)
	}

	e.log.Info("Leader election stopped")

	return nil
}

func (e *Elector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.renew)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasLeader := e.IsLeader()
			acquired := e.tryAcquire(ctx)

			switch {
			case acquired && !wasLeader:
				e.log.WithField("instance_id", e.instanceID).Info("Promoted to leader")
			case !acquired && wasLeader:
				e.log.WithField("instance_id", e.instanceID).Info("Demoted from leader")
			}

			e.setLeader(acquired)
		}
	}
}

func (e *Elector) tryAcquire(ctx context.Context) bool {
	if e.IsLeader() {
		renewed, err := renewLease.Run(ctx, e.redis, []string{e.key}, e.instanceID, e.ttl.Milliseconds()).Int()
		if err != nil {
			e.log.WithError(err).Warn("Failed to renew leader lease")
			return false
		}

		if renewed == 1 {
			return true
		}
	}

	acquired, err := e.redis.SetNX(ctx, e.key, e.instanceID, e.ttl).Result()
	if err != nil {
		e.log.WithError(err).Debug("Failed to acquire leader lease")
		return false
	}

	return acquired
}

func (e *Elector) setLeader(isLeader bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.isLeader = isLeader
}

// IsLeader implements Leader
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isLeader
}

var (
	_ Leader = (*Elector)(nil)
	_ Leader = AlwaysLeader{}
)
