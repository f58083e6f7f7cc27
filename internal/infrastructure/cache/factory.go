package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxLocalTTL bounds how long an instance serves a local snapshot it was not
// told to drop, in case an invalidation message is lost
const maxLocalTTL = 30 * time.Second

// HierarchyCacheFactory builds the hierarchy cache from configuration
type HierarchyCacheFactory struct {
	cfg                   config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption configures a HierarchyCacheFactory
type FactoryOption func(*HierarchyCacheFactory)

// WithLogger sets the logger passed to the caches
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *HierarchyCacheFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to a
// process-local cache (the default) or fails startup
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *HierarchyCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewHierarchyCacheFactory creates a factory
func NewHierarchyCacheFactory(cfg config.RedisConfig, opts ...FactoryOption) *HierarchyCacheFactory {
	f := &HierarchyCacheFactory{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HierarchyCacheHandle is a built cache plus what the caller must run and release
type HierarchyCacheHandle struct {
	Cache appcatalog.HierarchyCache
	// Listen applies remote invalidations until ctx ends; nil without Redis
	Listen func(ctx context.Context) error
	// Client is the Redis connection the cache uses; nil when in memory
	Client  *redis.Client
	closers []io.Closer
}

// Close releases the cache and any Redis client it opened
func (h *HierarchyCacheHandle) Close() error {
	var first error
	for _, c := range h.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CreateInMemory builds a process-local cache
func (f *HierarchyCacheFactory) CreateInMemory() *HierarchyCacheHandle {
	mem := NewInMemoryHierarchyCache(f.cfg.HierarchyTTL, WithInMemoryLogger(f.logger))
	return &HierarchyCacheHandle{Cache: mem, closers: []io.Closer{mem}}
}

// CreateTiered builds the Redis backed cache over an existing client. The
// caller keeps ownership of client.
func (f *HierarchyCacheFactory) CreateTiered(client *redis.Client) *HierarchyCacheHandle {
	local := NewInMemoryHierarchyCache(min(f.cfg.HierarchyTTL, maxLocalTTL), WithInMemoryLogger(f.logger))
	shared := NewRedisHierarchyCache(client, f.cfg.HierarchyTTL, WithRedisLogger(f.logger))
	tiered := NewTieredHierarchyCache(local, shared, NewScopeInvalidator(client, "", f.logger), f.logger)
	return &HierarchyCacheHandle{Cache: tiered, Listen: tiered.Listen, closers: []io.Closer{tiered}}
}

// Create connects to Redis when configured and falls back to memory when it is
// not configured, or unreachable and fallback is allowed
func (f *HierarchyCacheFactory) Create(ctx context.Context) (*HierarchyCacheHandle, error) {
	addr := f.cfg.Addr()
	if addr == "" {
		f.logger.Info("redis not configured, using in-memory hierarchy cache")
		return f.CreateInMemory(), nil
	}

	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr, Password: f.cfg.Password, DB: f.cfg.DB})
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for the hierarchy cache: %w", err)
		}
		f.logger.Warn("redis unavailable, using in-memory hierarchy cache; instances will not share snapshots",
			zap.String("addr", addr), zap.Error(err))
		return f.CreateInMemory(), nil
	}

	f.logger.Info("using redis hierarchy cache", zap.String("addr", addr), zap.Duration("ttl", f.cfg.HierarchyTTL))
	handle := f.CreateTiered(client)
	handle.Client = client
	handle.closers = append(handle.closers, client)
	return handle, nil
}
