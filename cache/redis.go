package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"watchlist-compare/logger"
	"watchlist-compare/models"
)

const keyPrefix = "watchlist:"

// RedisCache stores watchlists as JSON so several processes can share them.
// Redis failures degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
	now    func() time.Time
}

// NewRedisCache creates a RedisCache on an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, log: log, now: time.Now}
}

func key(username string) string {
	return keyPrefix + username
}

// Get implements Store
func (c *RedisCache) Get(ctx context.Context, username string) (models.CacheEntry, bool) {
	data, err := c.client.Get(ctx, key(username)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Failed to read cached watchlist", logger.String("username", username), logger.Error(err))
		}
		return models.CacheEntry{}, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn("Discarding unreadable cache entry", logger.String("username", username), logger.Error(err))
		return models.CacheEntry{}, false
	}

	// Redis expiry is second-granular, so the timestamp is checked too
	if expired(entry.FetchedAt, c.now(), c.ttl) {
		return models.CacheEntry{}, false
	}
	return entry, true
}

// Put implements Store. The whole entry is written with a single SET.
func (c *RedisCache) Put(ctx context.Context, username string, films []models.Film) error {
	entry := models.CacheEntry{
		Username:  username,
		Films:     films,
		FetchedAt: c.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, key(username), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry for %s: %w", username, err)
	}
	return nil
}
