package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix   = "catalog:hierarchy"
	defaultPingTimeout = 5 * time.Second
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and pings it
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisHierarchyCache stores hierarchy snapshots in Redis, shared by every
// instance. Each scope has a generation counter that is part of every snapshot
// key; invalidating a scope bumps the counter and orphans the old snapshots
// until their TTL runs out.
type RedisHierarchyCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// RedisCacheOption configures a RedisHierarchyCache
type RedisCacheOption func(*RedisHierarchyCache)

// WithKeyPrefix overrides the "catalog:hierarchy" key prefix
func WithKeyPrefix(prefix string) RedisCacheOption {
	return func(c *RedisHierarchyCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zap.Logger) RedisCacheOption {
	return func(c *RedisHierarchyCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisHierarchyCache creates a cache over client. The caller owns the client.
func NewRedisHierarchyCache(client *redis.Client, ttl time.Duration, opts ...RedisCacheOption) *RedisHierarchyCache {
	c := &RedisHierarchyCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: defaultKeyPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisHierarchyCache) generationKey(scope catalog.Scope) string {
	return fmt.Sprintf("%s:%s:%s:gen", c.keyPrefix, scope.TenantID, scope.OrgID)
}

func (c *RedisHierarchyCache) snapshotKey(key appcatalog.HierarchyCacheKey, generation int64) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", c.keyPrefix, key.Scope.TenantID, key.Scope.OrgID, generation, key)
}

func (c *RedisHierarchyCache) generation(ctx context.Context, scope catalog.Scope) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read hierarchy generation: %w", err)
	}
	return gen, nil
}

// Get returns the snapshot of the current generation stored under key
func (c *RedisHierarchyCache) Get(ctx context.Context, key appcatalog.HierarchyCacheKey) ([]appcatalog.CategoryTreeNode, bool, error) {
	gen, err := c.generation(ctx, key.Scope)
	if err != nil {
		return nil, false, err
	}

	snapshotKey := c.snapshotKey(key, gen)
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read hierarchy snapshot: %w", err)
	}

	var nodes []appcatalog.CategoryTreeNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		c.logger.Warn("dropping undecodable hierarchy snapshot", zap.String("key", snapshotKey), zap.Error(err))
		_ = c.client.Del(ctx, snapshotKey)
		return nil, false, fmt.Errorf("decode hierarchy snapshot: %w", err)
	}
	return nodes, true, nil
}

// Set stores nodes under key in the current generation of the scope
func (c *RedisHierarchyCache) Set(ctx context.Context, key appcatalog.HierarchyCacheKey, nodes []appcatalog.CategoryTreeNode) error {
	data, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode hierarchy snapshot: %w", err)
	}
	gen, err := c.generation(ctx, key.Scope)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.snapshotKey(key, gen), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write hierarchy snapshot: %w", err)
	}
	return nil
}

// InvalidateScope moves the scope to a new generation
func (c *RedisHierarchyCache) InvalidateScope(ctx context.Context, scope catalog.Scope) error {
	gen, err := c.client.Incr(ctx, c.generationKey(scope)).Result()
	if err != nil {
		return fmt.Errorf("bump hierarchy generation: %w", err)
	}
	c.logger.Debug("hierarchy generation bumped",
		zap.String("scope", scope.String()),
		zap.Int64("generation", gen))
	return nil
}

var _ appcatalog.HierarchyCache = (*RedisHierarchyCache)(nil)
