package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/omnitenant/pkg/tenant"
)

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key-value capability the cache isolation backend and
// the router work against. RedisCache backs it in production; tests
// use an in-memory fake.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key under prefix. Removing an empty
	// namespace is a no-op.
	DeletePrefix(ctx context.Context, prefix string) error
}

// RedisCache adapts a go-redis client to the Cache interface.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePrefix scans the keyspace in batches; SCAN keeps the server
// responsive where KEYS would block it.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

// PrefixFor returns the key namespace for a tenant.
func PrefixFor(t *tenant.Tenant) string {
	return "tenant:" + t.CachePrefix() + ":"
}

// Prefixed is a key-prefixing wrapper over a shared cache. Installing
// it is the whole of cache isolation: two tenants' wrappers can never
// produce the same key.
type Prefixed struct {
	base   Cache
	prefix string
}

var _ Cache = (*Prefixed)(nil)

// NewPrefixed wraps base so every key is namespaced under prefix.
func NewPrefixed(base Cache, prefix string) *Prefixed {
	return &Prefixed{base: base, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.base.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.base.Set(ctx, p.prefix+key, value, ttl)
}

func (p *Prefixed) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = p.prefix + k
	}
	return p.base.Delete(ctx, prefixed...)
}

func (p *Prefixed) DeletePrefix(ctx context.Context, prefix string) error {
	return p.base.DeletePrefix(ctx, p.prefix+prefix)
}

// CacheBackend namespaces a tenant inside the shared cache. There is
// nothing physical to provision; create and activate only install the
// prefix convention.
type CacheBackend struct {
	t     *tenant.Tenant
	cache Cache
}

var _ Backend = (*CacheBackend)(nil)

// NewCacheBackend builds a cache backend for t over the shared cache.
func NewCacheBackend(t *tenant.Tenant, cache Cache) *CacheBackend {
	return &CacheBackend{t: t, cache: cache}
}

// Scoped returns the tenant's prefixed view of the shared cache.
func (b *CacheBackend) Scoped() Cache {
	return NewPrefixed(b.cache, PrefixFor(b.t))
}

// Create validates the prefix; no resources are provisioned.
func (b *CacheBackend) Create(_ context.Context, _ CreateOptions) error {
	if b.t.CachePrefix() == "" {
		return &tenant.ConfigurationError{Field: "config.cache.prefix", Reason: "cache isolation requires a non-empty prefix"}
	}
	return nil
}

// Activate returns a context scoped to the tenant; the router resolves
// it to the prefixed cache view.
func (b *CacheBackend) Activate(ctx context.Context) (context.Context, error) {
	return tenant.WithTenant(ctx, b.t), nil
}

// Deactivate is a no-op: the wrapper holds no resources.
func (b *CacheBackend) Deactivate(_ context.Context) error { return nil }

// Delete clears the tenant's key namespace. An empty namespace makes
// this a no-op, so repeated deletes are safe.
func (b *CacheBackend) Delete(ctx context.Context) error {
	if err := b.cache.DeletePrefix(ctx, PrefixFor(b.t)); err != nil {
		return fmt.Errorf("clear cache namespace for tenant %s: %w", b.t.ID, err)
	}
	return nil
}
