// Package lock keeps poll cycles from overlapping, within one process or
// across replicas sharing a Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Release gives a held lock back. It is safe to call after the TTL expired.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	Client *redis.Client
}

func NewRedisLocker(opt *redis.Options) *RedisLocker {
	return &RedisLocker{Client: redis.NewClient(opt)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if l == nil || l.Client == nil {
		return nil, fmt.Errorf("redis client not configured")
	}
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
	}, nil
}

func (l *RedisLocker) Close() error {
	if l == nil || l.Client == nil {
		return nil
	}
	return l.Client.Close()
}

// LocalLocker is the single-process Locker.
type LocalLocker struct {
	Now func() time.Time

	mu     sync.Mutex
	held   map[string]localLease
	tokens uint64
}

type localLease struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localLease{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]localLease{}
	}
	now := l.now()
	if lease, ok := l.held[key]; ok && now.Before(lease.expires) {
		return nil, ErrNotAcquired
	}
	l.tokens++
	token := l.tokens
	l.held[key] = localLease{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[key]; ok && lease.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

func (l *LocalLocker) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
