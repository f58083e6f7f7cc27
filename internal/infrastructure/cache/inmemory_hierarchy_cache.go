package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// Stats counts cache lookups
type Stats struct {
	Hits   int64
	Misses int64
}

// snapshotEntry holds an encoded hierarchy so callers never share slices
type snapshotEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e snapshotEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemoryHierarchyCache keeps hierarchy snapshots in process memory, grouped
// by scope so a scope can be dropped in one step. Used alone for single
// instance deployments and as the first tier in front of Redis.
type InMemoryHierarchyCache struct {
	mu      sync.RWMutex
	scopes  map[catalog.Scope]map[string]snapshotEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
}

// InMemoryOption configures an InMemoryHierarchyCache
type InMemoryOption func(*InMemoryHierarchyCache)

// WithInMemoryLogger sets the logger
func WithInMemoryLogger(logger *zap.Logger) InMemoryOption {
	return func(c *InMemoryHierarchyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewInMemoryHierarchyCache creates the cache and starts its expiry sweeper.
// Call Close to stop the sweeper.
func NewInMemoryHierarchyCache(ttl time.Duration, opts ...InMemoryOption) *InMemoryHierarchyCache {
	c := &InMemoryHierarchyCache{
		scopes: make(map[catalog.Scope]map[string]snapshotEntry),
		ttl:    ttl,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweep(defaultCleanupInterval)
	return c
}

// Get returns the snapshot stored under key, if any
func (c *InMemoryHierarchyCache) Get(_ context.Context, key appcatalog.HierarchyCacheKey) ([]appcatalog.CategoryTreeNode, bool, error) {
	c.mu.RLock()
	entry, ok := c.scopes[key.Scope][key.String()]
	c.mu.RUnlock()

	if !ok || entry.isExpired(time.Now()) {
		c.misses.Add(1)
		return nil, false, nil
	}

	var nodes []appcatalog.CategoryTreeNode
	if err := json.Unmarshal(entry.data, &nodes); err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("decode hierarchy snapshot: %w", err)
	}
	c.hits.Add(1)
	return nodes, true, nil
}

// Set stores nodes under key
func (c *InMemoryHierarchyCache) Set(_ context.Context, key appcatalog.HierarchyCacheKey, nodes []appcatalog.CategoryTreeNode) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode hierarchy snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.scopes[key.Scope]
	if !ok {
		entries = make(map[string]snapshotEntry)
		c.scopes[key.Scope] = entries
	}
	entries[key.String()] = snapshotEntry{data: data, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

// InvalidateScope drops every snapshot of scope
func (c *InMemoryHierarchyCache) InvalidateScope(_ context.Context, scope catalog.Scope) error {
	c.mu.Lock()
	delete(c.scopes, scope)
	c.mu.Unlock()
	c.logger.Debug("hierarchy snapshots dropped", zap.String("scope", scope.String()))
	return nil
}

// Len returns the number of stored snapshots, expired ones included
func (c *InMemoryHierarchyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entries := range c.scopes {
		n += len(entries)
	}
	return n
}

// Stats returns the lookup counters
func (c *InMemoryHierarchyCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close stops the expiry sweeper
func (c *InMemoryHierarchyCache) Close() error {
	if c.stopped.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

func (c *InMemoryHierarchyCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.removeExpired(now)
		}
	}
}

func (c *InMemoryHierarchyCache) removeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for scope, entries := range c.scopes {
		for k, entry := range entries {
			if entry.isExpired(now) {
				delete(entries, k)
				removed++
			}
		}
		if len(entries) == 0 {
			delete(c.scopes, scope)
		}
	}
	if removed > 0 {
		c.logger.Debug("expired hierarchy snapshots removed", zap.Int("count", removed))
	}
	return removed
}

var _ appcatalog.HierarchyCache = (*InMemoryHierarchyCache)(nil)
