package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireMergeLock attempts to acquire the global merge lock. Merges
// touch two rides at once, so only one accept may run at a time even
// across multiple dispatcher consoles.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireMergeLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "lock:merge", "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseMergeLock releases the global merge lock.
func (s *LockStore) ReleaseMergeLock(ctx context.Context) error {
	return s.client.Del(ctx, "lock:merge").Err()
}

// AcquireRideLock attempts to acquire a lock for the given ride.
func (s *LockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:ride:%s", rideID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseRideLock releases the lock for the given ride.
func (s *LockStore) ReleaseRideLock(ctx context.Context, rideID string) error {
	key := fmt.Sprintf("lock:ride:%s", rideID)

	return s.client.Del(ctx, key).Err()
}
