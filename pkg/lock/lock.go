// Package lock serializes writers per entity key, either within one process
// or across processes sharing a Redis instance
package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrKeyRequired is returned when locking an empty key
	ErrKeyRequired = errors.New("lock key is required")
	// ErrLeaseLost is returned by Unlock when the lease expired or was taken over
	ErrLeaseLost = errors.New("lock lease lost")
	// ErrAlreadyReleased is returned when a lease is unlocked twice
	ErrAlreadyReleased = errors.New("lock already released")
)

// Lease is a held lock
type Lease interface {
	Unlock(ctx context.Context) error
}

// Locker grants at most one lease per key at a time
type Locker interface {
	Lock(ctx context.Context, key string) (Lease, error)
}

// Local is an in-process keyed mutex
type Local struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{keys: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}

	return ch
}

// Lock blocks until the key is free or ctx ends
func (l *Local) Lock(ctx context.Context, key string) (Lease, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
		return &localLease{ch: ch}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type localLease struct {
	once sync.Once
	ch   chan struct{}
}

func (l *localLease) Unlock(_ context.Context) error {
	released := false

	l.once.Do(func() {
		<-l.ch
		released = true
	})

	if !released {
		return ErrAlreadyReleased
	}

	return nil
}

var _ Locker = (*Local)(nil)
