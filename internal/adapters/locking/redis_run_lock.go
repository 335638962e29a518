package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/zatekoja/caremarket/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/redis"
)

// ImportLockKey is the Redis key held for the duration of an import run
const ImportLockKey = "lock:facility-import"

// RedisRunLocker guards import runs across processes with a Redis lock
type RedisRunLocker struct {
	locker *redislock.Client
	key    string
}

var _ providers.RunLocker = (*RedisRunLocker)(nil)

// NewRedisRunLocker creates a locker on ImportLockKey
func NewRedisRunLocker(client *redisclient.Client) *RedisRunLocker {
	return &RedisRunLocker{
		locker: redislock.New(client.Client()),
		key:    ImportLockKey,
	}
}

// Acquire obtains the lock without waiting. ttl bounds how long a crashed holder blocks others.
func (l *RedisRunLocker) Acquire(ctx context.Context, ttl time.Duration) (providers.RunLock, error) {
	lock, err := l.locker.Obtain(ctx, l.key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, providers.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain %s: %w", l.key, err)
	}
	return &redisRunLock{lock: lock}, nil
}

type redisRunLock struct {
	lock *redislock.Lock
}

// Release frees the lock. A lock that already expired is not an error.
func (l *redisRunLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
