package redis

import (
	"context"
	"time"

	"restaurant-storefront/internal/domain/ports/adapter"
)

var _ adapter.SeenCache = (*SeenCache)(nil)

// SeenCache stores marker keys under a prefix.
type SeenCache struct {
	client RedisClient
	prefix string
}

func NewSeenCache(client RedisClient, prefix string) *SeenCache {
	return &SeenCache{client: client, prefix: prefix}
}

func (c *SeenCache) Seen(ctx context.Context, key string) (bool, error) {
	return c.client.Exists(ctx, c.prefix+key)
}

func (c *SeenCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, 1, ttl)
}

// CallbackSeenPrefix namespaces callback redelivery markers.
const CallbackSeenPrefix = "callback:seen:"
