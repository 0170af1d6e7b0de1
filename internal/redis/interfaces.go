package redis

import (
	"context"
	"time"

	"buggy/internal/domain"
)

// TelemetryStoreInterface defines the interface for buggy position
// operations.
type TelemetryStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	GetCoordinates(ctx context.Context, driverID string) (domain.Coordinates, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// CacheStoreInterface defines directory caching and merge-dismissal
// bookkeeping.
type CacheStoreInterface interface {
	GetDirectory(ctx context.Context) ([]domain.Location, error)
	SetDirectory(ctx context.Context, locations []domain.Location) error
	InvalidateDirectory(ctx context.Context) error
	RecordDismissal(ctx context.Context, pairKey string) error
	IsDismissed(ctx context.Context, pairKey string) (bool, error)
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireMergeLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseMergeLock(ctx context.Context) error
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ TelemetryStoreInterface = (*TelemetryStore)(nil)
	_ CacheStoreInterface     = (*CacheStore)(nil)
	_ LockStoreInterface      = (*LockStore)(nil)
)
