package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/catalogforge/catalog/pkg/observability"
)

// CachedEntitlements wraps an EntitlementSource with a two-level cache:
// an in-process LRU in front of Redis. Entitlement reads dominate the
// request path while sharing changes are rare, so short TTLs are enough.
//
// Only positive lookups benefit; errors are never cached.
type CachedEntitlements struct {
	source  EntitlementSource
	redis   *redis.Client
	l1      *lru.Cache[string, []byte]
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedEntitlements creates the cache layer. The redis client may be
// nil, leaving only the in-process level. Metrics may be nil.
func NewCachedEntitlements(source EntitlementSource, rdb *redis.Client, l1Size int, ttl time.Duration, metrics *observability.Metrics) (*CachedEntitlements, error) {
	if l1Size <= 0 {
		l1Size = 1024
	}
	l1, err := lru.New[string, []byte](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create entitlement LRU: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedEntitlements{
		source:  source,
		redis:   rdb,
		l1:      l1,
		ttl:     ttl,
		metrics: metrics,
	}, nil
}

// cacheKey builds a stable key; group order is caller-defined, so sort a
// copy to keep equivalent queries on one key.
func cacheKey(kind string, groupIDs []string, permission Permission, resourceType Resource, resourceID int64) string {
	groups := make([]string, len(groupIDs))
	copy(groups, groupIDs)
	sort.Strings(groups)
	return fmt.Sprintf("entitlements:%s:%s:%s:%d:%s", kind, resourceType, permission, resourceID, strings.Join(groups, ","))
}

func (c *CachedEntitlements) lookup(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := c.l1.Get(key); ok {
		if c.metrics != nil {
			c.metrics.EntitlementCacheHits.WithLabelValues("l1").Inc()
		}
		return data, true
	}
	if c.metrics != nil {
		c.metrics.EntitlementCacheMisses.WithLabelValues("l1").Inc()
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			if c.metrics != nil {
				c.metrics.EntitlementCacheHits.WithLabelValues("redis").Inc()
			}
			c.l1.Add(key, data)
			return data, true
		}
		if c.metrics != nil {
			c.metrics.EntitlementCacheMisses.WithLabelValues("redis").Inc()
		}
	}
	return nil, false
}

func (c *CachedEntitlements) store(ctx context.Context, key string, data []byte) {
	c.l1.Add(key, data)
	if c.redis != nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
}

// ResourceIDs implements EntitlementSource with caching
func (c *CachedEntitlements) ResourceIDs(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource) ([]int64, error) {
	key := cacheKey("ids", groupIDs, permission, resourceType, 0)
	if data, ok := c.lookup(ctx, key); ok {
		var ids []int64
		if err := json.Unmarshal(data, &ids); err == nil {
			return ids, nil
		}
	}

	ids, err := c.source.ResourceIDs(ctx, groupIDs, permission, resourceType)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(ids); err == nil {
		c.store(ctx, key, data)
	}
	return ids, nil
}

// HasAny implements EntitlementSource with caching
func (c *CachedEntitlements) HasAny(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource) (bool, error) {
	key := cacheKey("any", groupIDs, permission, resourceType, 0)
	if data, ok := c.lookup(ctx, key); ok {
		return string(data) == "1", nil
	}

	exists, err := c.source.HasAny(ctx, groupIDs, permission, resourceType)
	if err != nil {
		return false, err
	}
	if exists {
		c.store(ctx, key, []byte("1"))
	} else {
		c.store(ctx, key, []byte("0"))
	}
	return exists, nil
}

// HasResource implements EntitlementSource with caching
func (c *CachedEntitlements) HasResource(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource, resourceID int64) (bool, error) {
	key := cacheKey("res", groupIDs, permission, resourceType, resourceID)
	if data, ok := c.lookup(ctx, key); ok {
		return string(data) == "1", nil
	}

	exists, err := c.source.HasResource(ctx, groupIDs, permission, resourceType, resourceID)
	if err != nil {
		return false, err
	}
	if exists {
		c.store(ctx, key, []byte("1"))
	} else {
		c.store(ctx, key, []byte("0"))
	}
	return exists, nil
}

// Invalidate drops every cached entitlement answer. Called by sharing flows
// after grants change; drops everything rather than tracking per-key
// dependencies.
func (c *CachedEntitlements) Invalidate(ctx context.Context) error {
	c.l1.Purge()
	if c.redis == nil {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, "entitlements:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan entitlement keys: %w", err)
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete entitlement keys: %w", err)
		}
	}
	return nil
}
