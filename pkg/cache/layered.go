package cache

import (
	"context"
	"time"
)

// LayeredCache reads through an in-process layer in front of Redis and writes
// through both. A nil Redis layer leaves a memory-only cache.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
	maxTTL time.Duration
}

var (
	_ Service = (*LayeredCache)(nil)
	_ Locker  = (*LayeredCache)(nil)
)

func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize), WithMemoryCleanup(cfg.MemoryTTL)),
		remote: remote,
		maxTTL: cfg.MemoryTTL,
	}
}

// localTTL never outlives the remote expiration.
func (lc *LayeredCache) localTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.maxTTL {
		return expiration
	}
	return lc.maxTTL
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if lc.remote == nil {
		return lc.local.Set(ctx, key, value, expiration)
	}
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, lc.localTTL(expiration))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	if lc.remote == nil {
		return ErrCacheMiss
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, dest, lc.maxTTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.local.DeleteByPattern(ctx, pattern)
	if lc.remote == nil {
		return nil
	}
	return lc.remote.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if lc.remote == nil {
		return lc.local.Exists(ctx, keys...)
	}
	return lc.remote.Exists(ctx, keys...)
}

// TryLock uses Redis when present so the lock spans replicas.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if lc.remote == nil {
		return lc.local.TryLock(ctx, key, ttl)
	}
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	if lc.remote == nil {
		return lc.local.Unlock(ctx, key)
	}
	return lc.remote.Unlock(ctx, key)
}

// Close stops the memory layer and closes the Redis client.
func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	if lc.remote == nil {
		return nil
	}
	return lc.remote.Close()
}
