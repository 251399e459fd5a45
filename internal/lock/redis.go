package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL            = 30 * time.Second
	DefaultAcquireTimeout = 10 * time.Second
)

// ErrTimeout is returned when a lock could not be acquired in time.
var ErrTimeout = errors.New("timeout acquiring lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// RedisLocker is a per-key lock shared by every instance using the same Redis.
type RedisLocker struct {
	log            *zap.Logger
	client         redis.UniversalClient
	prefix         string
	ttl            time.Duration
	acquireTimeout time.Duration
}

func NewRedisLocker(log *zap.Logger, client redis.UniversalClient, prefix string, ttl, acquireTimeout time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &RedisLocker{
		log:            log,
		client:         client,
		prefix:         prefix,
		ttl:            ttl,
		acquireTimeout: acquireTimeout,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + ":" + key
	token := uuid.New().String()
	deadline := time.Now().Add(l.acquireTimeout)
	backoff := 20 * time.Millisecond

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, Error.New("redis setnx: %w", err)
		}
		if ok {
			break
		}

		if time.Now().After(deadline) {
			return nil, Error.Wrap(ErrTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > 500*time.Millisecond {
			backoff = 500 * time.Millisecond
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_, err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.log.Error("failed to release lock", zap.String("key", lockKey), zap.Error(err))
			}
		})
	}, nil
}
