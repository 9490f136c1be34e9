package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultLockPrefix namespaces lock keys away from session keys.
const defaultLockPrefix = "lock:"

// Locker provides short-lived mutual exclusion via SET NX. Locks expire on
// their own, so a crashed holder cannot wedge the key.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker creates a new Redis-backed locker.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{
		client: client,
		prefix: defaultLockPrefix,
	}
}

// TryLock attempts to acquire the key for ttl. It returns false when another
// holder has it; it never blocks.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return false, errors.New("lock ttl must be positive")
	}

	ok, err := l.client.SetNX(ctx, l.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Unlock releases the key. Releasing an unheld key is a no-op.
func (l *Locker) Unlock(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
