package sso

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultLoginCacheTTL is how long a login result stays redeemable
	DefaultLoginCacheTTL = 10 * time.Minute
	// DefaultLoginCacheSize caps the in-memory cache
	DefaultLoginCacheSize = 1000

	redisKeyPrefix = "ssomap:login:"
)

// LoginCache holds login results per authorization code so the second pass
// of a multi-step login (2FA) does not re-run the pipeline. Codes are
// hashed before use as keys.
type LoginCache interface {
	Get(ctx context.Context, code string) (*LoginResult, bool, error)
	Put(ctx context.Context, code string, result *LoginResult) error
	// Redeem drops the entry once the login completes
	Redeem(ctx context.Context, code string) error
}

func cacheKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// MemoryLoginCache is a process-local LoginCache
type MemoryLoginCache struct {
	cache *lru.LRU[string, LoginResult]
}

// NewMemoryLoginCache creates a new MemoryLoginCache
func NewMemoryLoginCache(size int, ttl time.Duration) *MemoryLoginCache {
	if size <= 0 {
		size = DefaultLoginCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultLoginCacheTTL
	}
	return &MemoryLoginCache{
		cache: lru.NewLRU[string, LoginResult](size, nil, ttl),
	}
}

// Get returns a copy of the cached result
func (c *MemoryLoginCache) Get(ctx context.Context, code string) (*LoginResult, bool, error) {
	result, ok := c.cache.Get(cacheKey(code))
	if !ok {
		return nil, false, nil
	}
	return &result, true, nil
}

// Put stores a copy of result
func (c *MemoryLoginCache) Put(ctx context.Context, code string, result *LoginResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	c.cache.Add(cacheKey(code), *result)
	return nil
}

// Redeem drops the cached result
func (c *MemoryLoginCache) Redeem(ctx context.Context, code string) error {
	c.cache.Remove(cacheKey(code))
	return nil
}

// Len returns the number of cached results
func (c *MemoryLoginCache) Len() int {
	return c.cache.Len()
}

// RedisLoginCache shares login results between instances
type RedisLoginCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLoginCache creates a new RedisLoginCache
func NewRedisLoginCache(client *redis.Client, ttl time.Duration) *RedisLoginCache {
	if ttl <= 0 {
		ttl = DefaultLoginCacheTTL
	}
	return &RedisLoginCache{client: client, ttl: ttl}
}

// Get loads a cached result
func (c *RedisLoginCache) Get(ctx context.Context, code string) (*LoginResult, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+cacheKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read login cache: %w", err)
	}

	var result LoginResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode login cache entry: %w", err)
	}
	return &result, true, nil
}

// Put stores result with the cache TTL
func (c *RedisLoginCache) Put(ctx context.Context, code string, result *LoginResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode login cache entry: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+cacheKey(code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write login cache: %w", err)
	}
	return nil
}

// Redeem deletes the cached result
func (c *RedisLoginCache) Redeem(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+cacheKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to redeem login cache entry: %w", err)
	}
	return nil
}
