package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creator-subscription-api/pkg/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes work on a key across callers. The returned function
// releases the lock and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock (SET NX PX with a random token)
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	waitTimeout   time.Duration
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           30 * time.Second,
		retryInterval: 50 * time.Millisecond,
		waitTimeout:   10 * time.Second,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil {
						logging.Errorf("Failed to release lock %s: %v", lockKey, err)
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		case <-time.After(l.retryInterval):
		}
	}
}

// MemoryLocker is an in-process keyed mutex. It only serializes callers
// within one instance.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]chan struct{}),
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		held, exists := l.locks[key]
		if !exists {
			released := make(chan struct{})
			l.locks[key] = released
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, key)
					l.mu.Unlock()
					close(released)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		}
	}
}
