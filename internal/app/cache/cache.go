package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	urlKeyPrefix    = "link:"
	clicksKeyPrefix = "clicks:"

	// DefaultTTL is how long a destination stays cached after the last set.
	DefaultTTL = time.Hour
)

// LinkCache is the fast-path mapping from short code to destination URL,
// plus an independent click counter namespace. Absence of an entry says
// nothing about whether the link exists; only the store is authoritative.
type LinkCache interface {
	GetURL(ctx context.Context, code string) (string, bool, error)
	SetURL(ctx context.Context, code, originalURL string, ttl time.Duration) error
	IncrementClicks(ctx context.Context, code string) error
	GetClicks(ctx context.Context, code string) (int64, error)
}

type linkCache struct {
	rdb *redis.Client
}

// NewLinkCache returns a redis-backed LinkCache.
func NewLinkCache(rdb *redis.Client) LinkCache {
	return &linkCache{rdb: rdb}
}

func (c *linkCache) GetURL(ctx context.Context, code string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, urlKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *linkCache) SetURL(ctx context.Context, code, originalURL string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return c.rdb.SetEx(ctx, urlKeyPrefix+code, originalURL, ttl).Err()
}

// IncrementClicks bumps the cache-side counter. The counter has no TTL and
// lives independently of the URL entry.
func (c *linkCache) IncrementClicks(ctx context.Context, code string) error {
	return c.rdb.Incr(ctx, clicksKeyPrefix+code).Err()
}

func (c *linkCache) GetClicks(ctx context.Context, code string) (int64, error) {
	val, err := c.rdb.Get(ctx, clicksKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
