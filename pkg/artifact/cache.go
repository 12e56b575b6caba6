package artifact

import (
	"context"
	"errors"
	"sync"

	"github.com/ethpandaops/lossforecast/pkg/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore keeps recently read artifacts in memory so repeated forecasts
// skip decoding. Writes go through to the backing store first and evict the
// entry; the next read refills it.
type CachedStore struct {
	Store

	cache *lru.Cache[string, *Artifact]

	// generations counts writes per entity and epoch counts invalidations.
	// A read only fills the cache when neither moved during its backing read.
	mu          sync.Mutex
	generations map[string]uint64
	epoch       uint64
}

// NewCachedStore wraps a store with an LRU of the given size
func NewCachedStore(backing Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *Artifact](size)
	if err != nil {
		return nil, err
	}

	return &CachedStore{
		Store:       backing,
		cache:       cache,
		generations: make(map[string]uint64),
	}, nil
}

// Put implements Store
func (c *CachedStore) Put(ctx context.Context, a *Artifact) error {
	err := c.Store.Put(ctx, a)
	c.evict(a.EntityID)

	return err
}

// Get implements Store
func (c *CachedStore) Get(ctx context.Context, entityID string) (*Artifact, error) {
	if a, ok := c.cache.Get(entityID); ok {
		observability.RecordCacheLookup(true)
		return a, nil
	}

	observability.RecordCacheLookup(false)

	c.mu.Lock()
	generation, epoch := c.generations[entityID], c.epoch
	c.mu.Unlock()

	a, err := c.Store.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.cache.Remove(entityID)
		}

		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent write may have replaced what was just read
	if c.generations[entityID] == generation && c.epoch == epoch {
		c.cache.Add(entityID, a)
	}

	return a, nil
}

// Delete implements Store
func (c *CachedStore) Delete(ctx context.Context, entityID string) error {
	err := c.Store.Delete(ctx, entityID)
	c.evict(entityID)

	return err
}

// Invalidate drops every cached artifact. Needed when another process may
// have written to the backing store.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.cache.Purge()
}

func (c *CachedStore) evict(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[entityID]++
	c.cache.Remove(entityID)
}
