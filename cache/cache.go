package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"watchlist-compare/config"
	"watchlist-compare/logger"
	"watchlist-compare/models"
)

// Store is the process-wide watchlist cache shared by all comparisons.
// Reads and writes of one username are atomic; a Get never sees a
// half-written entry.
type Store interface {
	// Get returns the live entry for username. Entries older than the TTL
	// are reported as absent.
	Get(ctx context.Context, username string) (models.CacheEntry, bool)
	// Put replaces the entry for username and stamps it with the current time
	Put(ctx context.Context, username string, films []models.Film) error
}

// ErrEmptyAddress is returned when the redis backend has no address configured
var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// New returns the backend selected by cfg.Cache.Backend. The returned close
// function releases the redis connection when one was opened.
func New(cfg *config.Config, log logger.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Cache.Backend {
	case config.BackendRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisCache(client, cfg.Cache.TTL, log), client.Close, nil
	case config.BackendMemory, "":
		return NewMemoryCache(cfg.Cache.TTL), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// NewRedisClient creates a redis client and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// expired reports whether an entry fetched at fetchedAt is past ttl at now.
// A zero ttl never expires.
func expired(fetchedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(fetchedAt) > ttl
}
