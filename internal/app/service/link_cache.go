package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thisux/shortlink/internal/app/model"
)

const (
	linkCacheKeyPrefix = "link:code:"
	linkCacheTTL       = 60 * time.Second
)

// LinkCache keeps a short-TTL Redis copy of code-to-link resolutions
// for the redirect hot path. Mutations invalidate eagerly; the TTL
// bounds staleness if an invalidation is missed. A nil cache disables
// caching.
type LinkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLinkCache returns a cache over the given Redis client, or nil if
// the client is nil.
func NewLinkCache(rdb *redis.Client) *LinkCache {
	if rdb == nil {
		return nil
	}
	return &LinkCache{rdb: rdb, ttl: linkCacheTTL}
}

// Get returns the cached link for a code, if present. Cache errors are
// treated as misses.
func (c *LinkCache) Get(ctx context.Context, code string) (*model.Link, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, linkCacheKeyPrefix+code).Bytes()
	if err != nil {
		return nil, false
	}

	var link model.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, false
	}
	return &link, true
}

// Set stores the link under its resolving code. The Link JSON omits
// click events, so entries stay small.
func (c *LinkCache) Set(ctx context.Context, code string, link *model.Link) {
	if c == nil {
		return
	}
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, linkCacheKeyPrefix+code, data, c.ttl)
}

// Invalidate drops cached entries for the given codes.
func (c *LinkCache) Invalidate(ctx context.Context, codes ...string) {
	if c == nil || len(codes) == 0 {
		return
	}
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		if code != "" {
			keys = append(keys, linkCacheKeyPrefix+code)
		}
	}
	if len(keys) > 0 {
		c.rdb.Del(ctx, keys...)
	}
}
