package luckyreel

import (
	"context"
	"sync"
	"time"
)

// activeWinnersLimit is how many winners the public ticker shows.
const activeWinnersLimit = 10

// WinnerCache is an in-memory cache of the active winners list with TTL.
type WinnerCache struct {
	mu      sync.RWMutex
	winners []Winner
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewWinnerCache creates a WinnerCache backed by the given Store.
func NewWinnerCache(s *Store, ttl time.Duration) *WinnerCache {
	return &WinnerCache{store: s, ttl: ttl}
}

func (c *WinnerCache) valid() bool {
	return c.winners != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *WinnerCache) Invalidate() {
	c.mu.Lock()
	c.winners = nil
	c.mu.Unlock()
}

// Active returns the newest active winners. It tries a read lock first and
// only takes the write lock when a reload is needed.
func (c *WinnerCache) Active(ctx context.Context) ([]Winner, error) {
	c.mu.RLock()
	if c.valid() {
		winners := c.winners
		c.mu.RUnlock()
		return winners, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.winners, nil
	}
	winners, err := c.store.ListActiveWinners(ctx, activeWinnersLimit)
	if err != nil {
		return nil, err
	}
	c.winners = winners
	c.fetched = time.Now()
	return winners, nil
}
