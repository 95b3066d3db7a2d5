// Package lock serializes writers per key. The content services hold one
// lock per content request while they append a version.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the context ends before the lock is held
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires an exclusive lock for key. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker is an in-process keyed mutex
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *LocalLocker) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// RedisLocker is a single-instance Redis lock (SET NX PX with a release token).
// It layers on a LocalLocker so goroutines of one process do not spin on Redis.
type RedisLocker struct {
	client *redis.Client
	local  *LocalLocker
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder blocks others.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client: client,
		local:  NewLocalLocker(),
		prefix: "lock:",
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

// Lock acquires the local lock, then the Redis key
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := r.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	redisKey := r.prefix + key
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			unlockLocal()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must run even when the caller's context is gone
			_ = releaseScript.Run(context.Background(), r.client, []string{redisKey}, token).Err()
			unlockLocal()
		})
	}, nil
}

// New returns a RedisLocker when client is set, otherwise a LocalLocker
func New(client *redis.Client, ttl time.Duration) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client, ttl)
}
