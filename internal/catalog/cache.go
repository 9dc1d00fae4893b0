// Package catalog provides a bounded, time-expiring read cache over the
// reward catalog. Only the browse path reads through it; balance and stock
// are economy-critical and are always read straight from the store on write
// paths. Catalog writes invalidate the cache explicitly.
package catalog

import (
	"sync"
	"time"

	"github.com/calluna/rewardbox/internal/model"
	"github.com/calluna/rewardbox/internal/store"
)

const defaultTTL = 30 * time.Second

type Cache struct {
	rewards *store.RewardStore
	ttl     time.Duration

	mu      sync.RWMutex
	cached  []model.Reward
	fetched time.Time
}

// NewCache creates a cache over the reward store. A ttl <= 0 falls back to
// the default.
func NewCache(rewards *store.RewardStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{rewards: rewards, ttl: ttl}
}

// Active returns the active catalog entries, refreshing from the store when
// the cached copy is stale.
func (c *Cache) Active() ([]model.Reward, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.fetched) < c.ttl {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock.
	if c.cached != nil && time.Since(c.fetched) < c.ttl {
		return c.cached, nil
	}

	rewards, err := c.rewards.ListActive()
	if err != nil {
		return nil, err
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	c.cached = rewards
	c.fetched = time.Now()
	return rewards, nil
}

// Invalidate drops the cached copy. Called after any catalog write so the
// next browse reflects it immediately.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
