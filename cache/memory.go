package cache

import (
	"context"
	"sync"
	"time"

	"watchlist-compare/models"
)

// MemoryCache keeps watchlists in process memory until the TTL passes or
// the process exits. Stale entries are not swept; they read as absent and
// get overwritten by the next successful scrape.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache. A zero ttl disables expiry.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]models.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Store
func (c *MemoryCache) Get(_ context.Context, username string) (models.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[username]
	c.mu.RUnlock()

	if !ok || expired(entry.FetchedAt, c.now(), c.ttl) {
		return models.CacheEntry{}, false
	}
	return entry, true
}

// Put implements Store
func (c *MemoryCache) Put(_ context.Context, username string, films []models.Film) error {
	stored := make([]models.Film, len(films))
	copy(stored, films)

	entry := models.CacheEntry{
		Username:  username,
		Films:     stored,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	c.entries[username] = entry
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, stale ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
