// README: Redis run lock so only one matching job runs across replicas.
package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const jobLockKey = "matching:job:lock"

// Locker guards a matching run. Refresh and Release must be called with the
// token that TryAcquire returned. Refresh reports false once the lock is no
// longer held by that token.
type Locker interface {
	TryAcquire(ctx context.Context) (token string, ok bool, err error)
	Refresh(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}

type RedisLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisLock(rdb *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{rdb: rdb, key: jobLockKey, ttl: ttl}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// refreshScript resets the TTL only while the key still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

func (l *RedisLock) TryAcquire(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLock) Refresh(ctx context.Context, token string) (bool, error) {
	n, err := refreshScript.Run(ctx, l.rdb, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLock) Release(ctx context.Context, token string) error {
	err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// memLocker is an in-process Locker for single-replica runs and tests.
type memLocker struct {
	mu   sync.Mutex
	held string
}

// NewLocalLock returns a Locker scoped to this process.
func NewLocalLock() Locker { return &memLocker{} }

func (l *memLocker) TryAcquire(context.Context) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held != "" {
		return "", false, nil
	}
	l.held = uuid.NewString()
	return l.held, true, nil
}

func (l *memLocker) Refresh(_ context.Context, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return token != "" && l.held == token, nil
}

func (l *memLocker) Release(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == token {
		l.held = ""
	}
	return nil
}
