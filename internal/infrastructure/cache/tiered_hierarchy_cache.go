package cache

import (
	"context"
	"sync/atomic"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"go.uber.org/zap"
)

// TieredHierarchyCache reads through a local in-memory tier into Redis.
// Invalidations bump the Redis generation and are broadcast so other
// instances drop their local copies.
type TieredHierarchyCache struct {
	l1          *InMemoryHierarchyCache
	l2          *RedisHierarchyCache
	invalidator *ScopeInvalidator
	logger      *zap.Logger

	l2Hits   atomic.Int64
	l2Misses atomic.Int64
}

// NewTieredHierarchyCache combines the tiers. invalidator may be nil for a
// single instance.
func NewTieredHierarchyCache(l1 *InMemoryHierarchyCache, l2 *RedisHierarchyCache, invalidator *ScopeInvalidator, logger *zap.Logger) *TieredHierarchyCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredHierarchyCache{l1: l1, l2: l2, invalidator: invalidator, logger: logger}
}

// Listen applies invalidations from other instances to the local tier until
// ctx ends. Run it in its own goroutine.
func (c *TieredHierarchyCache) Listen(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	return c.invalidator.Subscribe(ctx, func(scope catalog.Scope) {
		_ = c.l1.InvalidateScope(context.Background(), scope)
	})
}

// Get checks the local tier, then Redis, copying Redis hits into the local tier
func (c *TieredHierarchyCache) Get(ctx context.Context, key appcatalog.HierarchyCacheKey) ([]appcatalog.CategoryTreeNode, bool, error) {
	if nodes, ok, err := c.l1.Get(ctx, key); err == nil && ok {
		return nodes, true, nil
	}

	nodes, ok, err := c.l2.Get(ctx, key)
	if err != nil || !ok {
		c.l2Misses.Add(1)
		return nil, false, err
	}
	c.l2Hits.Add(1)
	if err := c.l1.Set(ctx, key, nodes); err != nil {
		c.logger.Warn("failed to populate local hierarchy cache", zap.Error(err))
	}
	return nodes, true, nil
}

// Set writes both tiers
func (c *TieredHierarchyCache) Set(ctx context.Context, key appcatalog.HierarchyCacheKey, nodes []appcatalog.CategoryTreeNode) error {
	if err := c.l2.Set(ctx, key, nodes); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, nodes)
}

// InvalidateScope drops the scope in both tiers and tells the other instances
func (c *TieredHierarchyCache) InvalidateScope(ctx context.Context, scope catalog.Scope) error {
	_ = c.l1.InvalidateScope(ctx, scope)
	if err := c.l2.InvalidateScope(ctx, scope); err != nil {
		return err
	}
	if c.invalidator != nil {
		if err := c.invalidator.Publish(ctx, scope); err != nil {
			c.logger.Warn("failed to broadcast hierarchy invalidation",
				zap.String("scope", scope.String()), zap.Error(err))
		}
	}
	return nil
}

// Stats returns local hits plus Redis hits, and misses of both tiers
func (c *TieredHierarchyCache) Stats() Stats {
	local := c.l1.Stats()
	return Stats{Hits: local.Hits + c.l2Hits.Load(), Misses: c.l2Misses.Load()}
}

// Close stops the local sweeper and the invalidation subscription
func (c *TieredHierarchyCache) Close() error {
	if c.invalidator != nil {
		_ = c.invalidator.Close()
	}
	return c.l1.Close()
}

var _ appcatalog.HierarchyCache = (*TieredHierarchyCache)(nil)
