package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records token ids (jti) that must be rejected before they
// expire
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revocationKeyPrefix = "catalog:revoked:"

// RedisRevocationList keeps revoked ids in Redis so every instance sees them
type RedisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList uses an existing client; the caller keeps ownership
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke stores jti until ttl runs out, which should be the token's remaining
// lifetime
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, revocationKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks jti
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// InMemoryRevocationList is the single-instance fallback used without Redis
type InMemoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{revoked: make(map[string]time.Time)}
}

// Revoke stores jti until ttl runs out
func (r *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked checks jti and forgets it once expired
func (r *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiry, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}

var (
	_ RevocationList = (*RedisRevocationList)(nil)
	_ RevocationList = (*InMemoryRevocationList)(nil)
)
