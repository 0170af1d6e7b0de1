package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"buggy/internal/domain"
)

// CacheStore handles directory caching and merge bookkeeping in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

const (
	// DirectoryCacheTTL keeps the location directory fresh enough that
	// admin edits show up within seconds while sparing the database a
	// query per resolve call.
	DirectoryCacheTTL = 15 * time.Second

	// DismissalTTL bounds how long a rejected merge pair stays
	// suppressed. Pending rides resolve well within this window.
	DismissalTTL = 2 * time.Hour
)

const (
	directoryCacheKey = "cache:directory"
	dismissalPrefix   = "merge:dismissed:"
)

// GetDirectory retrieves the cached location directory. A nil slice
// with nil error means cache miss.
func (s *CacheStore) GetDirectory(ctx context.Context) ([]domain.Location, error) {
	data, err := s.client.Get(ctx, directoryCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var locations []domain.Location
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// SetDirectory caches the location directory.
func (s *CacheStore) SetDirectory(ctx context.Context, locations []domain.Location) error {
	data, err := json.Marshal(locations)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, directoryCacheKey, data, DirectoryCacheTTL).Err()
}

// InvalidateDirectory removes the cached directory.
func (s *CacheStore) InvalidateDirectory(ctx context.Context) error {
	return s.client.Del(ctx, directoryCacheKey).Err()
}

// RecordDismissal marks a merge pair as rejected by a driver so it is
// not re-suggested. The key is the sorted ride-id pair, making the
// dismissal order-independent.
func (s *CacheStore) RecordDismissal(ctx context.Context, pairKey string) error {
	return s.client.Set(ctx, dismissalPrefix+pairKey, "1", DismissalTTL).Err()
}

// IsDismissed reports whether a merge pair was rejected.
func (s *CacheStore) IsDismissed(ctx context.Context, pairKey string) (bool, error) {
	val, err := s.client.Get(ctx, dismissalPrefix+pairKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return val == "1", nil
}
