package rbac

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/meridianhq/meridian/pkg/observability"
)

// CachedResolver wraps a Resolver with a Redis decision cache. Only
// concrete grant/deny decisions are cached; the Admin short-circuit is
// answered locally and never stored.
//
// Cache failures fall through to the resolver, so a Redis outage degrades
// to uncached checks rather than changed decisions.
type CachedResolver struct {
	resolver *Resolver
	client   *redis.Client
	ttl      time.Duration
	metrics  *observability.Metrics
}

// NewCachedResolver creates a decision cache over resolver. metrics may be
// nil.
func NewCachedResolver(resolver *Resolver, client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		resolver: resolver,
		client:   client,
		ttl:      ttl,
		metrics:  metrics,
	}
}

func decisionKey(roleName, permission string) string {
	return "rbac:grants:" + roleName + ":" + permission
}

// Grants answers Resolver.Grants through the cache
func (c *CachedResolver) Grants(ctx context.Context, roleName, permission string) bool {
	if IsExactlyAdmin(roleName) {
		return true
	}

	key := decisionKey(roleName, permission)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		if c.metrics != nil {
			c.metrics.DecisionCacheHitsTotal.Inc()
		}
		return cached == "1"
	}

	if c.metrics != nil {
		c.metrics.DecisionCacheMissTotal.Inc()
	}

	allowed := c.resolver.Grants(roleName, permission)

	value := "0"
	if allowed {
		value = "1"
	}
	// Best effort; a failed write just means the next check recomputes.
	c.client.Set(ctx, key, value, c.ttl)

	return allowed
}

// Invalidate drops every cached decision for a role
func (c *CachedResolver) Invalidate(ctx context.Context, roleName string) error {
	iter := c.client.Scan(ctx, 0, decisionKey(roleName, "*"), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
