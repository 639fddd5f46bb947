package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pagesKey = "dwhetl:history:pages"

// PageCache keeps rendered history pages in one Redis hash so a single
// delete invalidates every page.
type PageCache struct {
	redisClient redis.Cmdable
	ttl         time.Duration
}

// NewPageCache creates a page cache. A nil client disables caching.
func NewPageCache(redisClient redis.Cmdable, ttl time.Duration) *PageCache {
	return &PageCache{redisClient: redisClient, ttl: ttl}
}

func pageField(limit, offset int) string {
	return fmt.Sprintf("%d:%d", limit, offset)
}

// Get returns a cached page, or nil on a miss.
func (c *PageCache) Get(ctx context.Context, limit, offset int) (*Page, error) {
	if c == nil || c.redisClient == nil {
		return nil, nil
	}

	data, err := c.redisClient.HGet(ctx, pagesKey, pageField(limit, offset)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	var page Page
	if err := json.Unmarshal([]byte(data), &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// Set stores a page. Every write pushes the expiry of the whole hash to ttl.
func (c *PageCache) Set(ctx context.Context, page *Page) error {
	if c == nil || c.redisClient == nil {
		return nil
	}

	data, err := json.Marshal(page)
	if err != nil {
		return err
	}

	if err := c.redisClient.HSet(ctx, pagesKey, pageField(page.Limit, page.Offset), data).Err(); err != nil {
		return err
	}

	return c.redisClient.Expire(ctx, pagesKey, c.ttl).Err()
}

// Invalidate drops every cached page.
func (c *PageCache) Invalidate(ctx context.Context) error {
	if c == nil || c.redisClient == nil {
		return nil
	}

	return c.redisClient.Del(ctx, pagesKey).Err()
}
