package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScope() catalog.Scope {
	return catalog.Scope{TenantID: uuid.New(), OrgID: uuid.New()}
}

func sampleForest() []appcatalog.CategoryTreeNode {
	child := appcatalog.CategoryTreeNode{ID: uuid.New(), ExternalID: "physics", Name: "Physics", Depth: 1, IsVisible: true}
	return []appcatalog.CategoryTreeNode{{
		ID:                 uuid.New(),
		ExternalID:         "science",
		Name:               "Science",
		HasChildCategories: true,
		IsVisible:          true,
		Children:           []appcatalog.CategoryTreeNode{child},
	}}
}

func atoiPort(t *testing.T, port string) int {
	t.Helper()
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return n
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// hierarchyCacheContract runs the behaviour every HierarchyCache must share
func hierarchyCacheContract(t *testing.T, cache appcatalog.HierarchyCache) {
	ctx := context.Background()
	scope := newScope()
	other := newScope()
	forest := sampleForest()
	rootID := forest[0].ID

	forestKey := appcatalog.HierarchyCacheKey{Scope: scope, MaxDepth: 4}
	subtreeKey := appcatalog.HierarchyCacheKey{Scope: scope, RootID: &rootID, MaxDepth: 1}
	otherKey := appcatalog.HierarchyCacheKey{Scope: other, MaxDepth: 4}

	_, ok, err := cache.Get(ctx, forestKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, forestKey, forest))
	require.NoError(t, cache.Set(ctx, subtreeKey, forest[:1]))
	require.NoError(t, cache.Set(ctx, otherKey, forest))

	got, ok, err := cache.Get(ctx, forestKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, forest, got)

	// callers cannot corrupt the stored snapshot
	got[0].Name = "changed"
	again, _, err := cache.Get(ctx, forestKey)
	require.NoError(t, err)
	assert.Equal(t, "Science", again[0].Name)

	_, ok, err = cache.Get(ctx, appcatalog.HierarchyCacheKey{Scope: scope, MaxDepth: 2})
	require.NoError(t, err)
	assert.False(t, ok, "max depth is part of the key")

	require.NoError(t, cache.InvalidateScope(ctx, scope))
	for _, key := range []appcatalog.HierarchyCacheKey{forestKey, subtreeKey} {
		_, ok, err = cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, ok, err = cache.Get(ctx, otherKey)
	require.NoError(t, err)
	assert.True(t, ok, "other scopes survive")

	require.NoError(t, cache.Set(ctx, forestKey, forest))
	_, ok, err = cache.Get(ctx, forestKey)
	require.NoError(t, err)
	assert.True(t, ok, "scope is usable after invalidation")
}

func TestInMemoryHierarchyCache(t *testing.T) {
	cache := NewInMemoryHierarchyCache(time.Minute)
	t.Cleanup(func() { _ = cache.Close() })
	hierarchyCacheContract(t, cache)

	stats := cache.Stats()
	assert.Positive(t, stats.Hits)
	assert.Positive(t, stats.Misses)
}

func TestInMemoryHierarchyCache_Expiry(t *testing.T) {
	cache := NewInMemoryHierarchyCache(20 * time.Millisecond)
	t.Cleanup(func() { _ = cache.Close() })
	ctx := context.Background()
	key := appcatalog.HierarchyCacheKey{Scope: newScope(), MaxDepth: 4}

	require.NoError(t, cache.Set(ctx, key, sampleForest()))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, cache.removeExpired(time.Now()))
	assert.Zero(t, cache.Len())
}

func TestInMemoryHierarchyCache_CloseTwice(t *testing.T) {
	cache := NewInMemoryHierarchyCache(time.Minute)
	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
}

func TestRedisHierarchyCache(t *testing.T) {
	mr, client := newRedisClient(t)
	cache := NewRedisHierarchyCache(client, time.Minute, WithKeyPrefix("test:hierarchy"))
	hierarchyCacheContract(t, cache)

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		assert.Contains(t, k, "test:hierarchy:")
	}
}

func TestRedisHierarchyCache_TTLAndGeneration(t *testing.T) {
	mr, client := newRedisClient(t)
	cache := NewRedisHierarchyCache(client, time.Minute)
	ctx := context.Background()
	scope := newScope()
	key := appcatalog.HierarchyCacheKey{Scope: scope, MaxDepth: 4}

	require.NoError(t, cache.Set(ctx, key, sampleForest()))
	snapshot := cache.snapshotKey(key, 0)
	assert.Equal(t, time.Minute, mr.TTL(snapshot))

	require.NoError(t, cache.InvalidateScope(ctx, scope))
	require.NoError(t, cache.InvalidateScope(ctx, scope))
	gen, err := mr.Get(cache.generationKey(scope))
	require.NoError(t, err)
	assert.Equal(t, "2", gen)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(snapshot))
}

func TestRedisHierarchyCache_CorruptSnapshot(t *testing.T) {
	mr, client := newRedisClient(t)
	cache := NewRedisHierarchyCache(client, time.Minute)
	key := appcatalog.HierarchyCacheKey{Scope: newScope(), MaxDepth: 4}
	snapshot := cache.snapshotKey(key, 0)
	require.NoError(t, mr.Set(snapshot, "{not json"))

	_, ok, err := cache.Get(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(snapshot))
}

func TestRedisHierarchyCache_ServerDown(t *testing.T) {
	mr, client := newRedisClient(t)
	cache := NewRedisHierarchyCache(client, time.Minute)
	mr.Close()

	key := appcatalog.HierarchyCacheKey{Scope: newScope(), MaxDepth: 4}
	_, ok, err := cache.Get(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, cache.Set(context.Background(), key, sampleForest()))
	assert.Error(t, cache.InvalidateScope(context.Background(), key.Scope))
}

func TestTieredHierarchyCache(t *testing.T) {
	_, client := newRedisClient(t)
	factory := NewHierarchyCacheFactory(config.RedisConfig{HierarchyTTL: time.Minute})
	handle := factory.CreateTiered(client)
	t.Cleanup(func() { _ = handle.Close() })
	hierarchyCacheContract(t, handle.Cache)
}

func TestTieredHierarchyCache_SharedAcrossInstances(t *testing.T) {
	_, client := newRedisClient(t)
	factory := NewHierarchyCacheFactory(config.RedisConfig{HierarchyTTL: time.Minute})
	first := factory.CreateTiered(client)
	second := factory.CreateTiered(client)
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = second.Listen(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	key := appcatalog.HierarchyCacheKey{Scope: newScope(), MaxDepth: 4}
	require.NoError(t, first.Cache.Set(context.Background(), key, sampleForest()))

	// second reads through Redis and keeps a local copy
	_, ok, err := second.Cache.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	local := second.Cache.(*TieredHierarchyCache).l1
	require.Equal(t, 1, local.Len())

	require.Eventually(t, func() bool {
		_ = first.Cache.InvalidateScope(context.Background(), key.Scope)
		return local.Len() == 0
	}, 2*time.Second, 20*time.Millisecond)

	_, ok, err = second.Cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopeInvalidator_SingleSubscription(t *testing.T) {
	_, client := newRedisClient(t)
	inv := NewScopeInvalidator(client, "a", nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- inv.Subscribe(ctx, func(catalog.Scope) {}) }()

	require.Eventually(t, func() bool {
		inv.mu.Lock()
		defer inv.mu.Unlock()
		return inv.running
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, inv.Subscribe(ctx, func(catalog.Scope) {}), ErrSubscriptionRunning)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	require.NoError(t, inv.Close())
}

func TestHierarchyCacheFactory(t *testing.T) {
	t.Run("no redis host uses memory", func(t *testing.T) {
		handle, err := NewHierarchyCacheFactory(config.RedisConfig{HierarchyTTL: time.Minute}).Create(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })
		assert.IsType(t, &InMemoryHierarchyCache{}, handle.Cache)
		assert.Nil(t, handle.Listen)
	})

	t.Run("reachable redis is tiered", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.RedisConfig{Host: mr.Host(), Port: atoiPort(t, mr.Port()), HierarchyTTL: time.Minute}
		handle, err := NewHierarchyCacheFactory(cfg).Create(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })
		assert.IsType(t, &TieredHierarchyCache{}, handle.Cache)
		assert.NotNil(t, handle.Listen)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.RedisConfig{Host: mr.Host(), Port: atoiPort(t, mr.Port()), HierarchyTTL: time.Minute}
		mr.Close()

		handle, err := NewHierarchyCacheFactory(cfg).Create(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = handle.Close() })
		assert.IsType(t, &InMemoryHierarchyCache{}, handle.Cache)

		_, err = NewHierarchyCacheFactory(cfg, WithInMemoryFallback(false)).Create(context.Background())
		assert.Error(t, err)
	})
}
