// Package cache implements the jittered read-through cache for paged
// listings. Entries of one namespace are tracked in an index set so the
// whole namespace can be dropped without scanning the keyspace.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL    = 5 * time.Minute
	DefaultJitter = 5 * time.Minute
)

// Error is the error class for cache failures.
var Error = errs.Class("cache")

var invalidateScript = redis.NewScript(`
local keys = redis.call("SMEMBERS", KEYS[1])
for i = 1, #keys, 500 do
    redis.call("DEL", unpack(keys, i, math.min(i + 499, #keys)))
end
redis.call("DEL", KEYS[1])
return #keys
`)

type ReadCache struct {
	log    *zap.Logger
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	jitter time.Duration
	group  singleflight.Group
}

func New(log *zap.Logger, client redis.UniversalClient, prefix string, ttl, jitter time.Duration) *ReadCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if jitter < 0 {
		jitter = 0
	}
	return &ReadCache{
		log:    log,
		client: client,
		prefix: prefix,
		ttl:    ttl,
		jitter: jitter,
	}
}

// Key derives the entry key from the JSON encoding of query. Struct fields
// encode in declaration order, so equal queries give equal keys.
func (c *ReadCache) Key(namespace string, query any) (string, error) {
	raw, err := json.Marshal(query)
	if err != nil {
		return "", Error.New("failed to encode query: %w", err)
	}
	sum := md5.Sum(raw)
	return c.namespaceKey(namespace) + ":" + hex.EncodeToString(sum[:]), nil
}

func (c *ReadCache) namespaceKey(namespace string) string {
	if c.prefix == "" {
		return namespace
	}
	return c.prefix + ":" + namespace
}

func (c *ReadCache) indexKey(namespace string) string {
	return c.namespaceKey(namespace) + ":index"
}

func (c *ReadCache) entryTTL() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int63n(int64(c.jitter)))
}

// Get decodes the cached value into dest. Any read or decode failure is
// reported as a miss.
func (c *ReadCache) Get(ctx context.Context, namespace string, query any, dest any) bool {
	key, err := c.Key(namespace, query)
	if err != nil {
		c.log.Warn("cache key failed", zap.Error(err))
		return false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Put stores value with a jittered TTL and records the key in the namespace index.
func (c *ReadCache) Put(ctx context.Context, namespace string, query any, value any) error {
	key, err := c.Key(namespace, query)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Error.New("failed to encode value: %w", err)
	}

	index := c.indexKey(namespace)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, c.entryTTL())
		pipe.SAdd(ctx, index, key)
		pipe.Expire(ctx, index, c.ttl+c.jitter)
		return nil
	})
	if err != nil {
		return Error.New("failed to store %s: %w", key, err)
	}
	return nil
}

// Invalidate drops every entry of namespace.
func (c *ReadCache) Invalidate(ctx context.Context, namespace string) error {
	n, err := invalidateScript.Run(ctx, c.client, []string{c.indexKey(namespace)}).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Error.New("failed to invalidate %s: %w", namespace, err)
	}
	c.log.Debug("cache namespace invalidated", zap.String("namespace", namespace), zap.Int64("entries", n))
	return nil
}

// GetOrLoad returns the cached value for query or calls load once per key
// across concurrent callers and caches its result. Cache write failures
// are logged and do not fail the call.
func GetOrLoad[T any](ctx context.Context, c *ReadCache, namespace string, query any, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, namespace, query, &cached) {
		return cached, nil
	}

	key, err := c.Key(namespace, query)
	if err != nil {
		var zero T
		return zero, err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, namespace, query, value); err != nil {
			c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
