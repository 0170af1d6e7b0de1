package repository

import (
	"context"

	"buggy/internal/domain"
)

// RideRepository defines the persistence boundary for ride requests.
// The ride service treats its in-memory state as authoritative and
// syncs through this interface; a failed write means the transition
// did not commit.
type RideRepository interface {
	// Create persists a new ride request.
	Create(ctx context.Context, ride *domain.RideRequest) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.RideRequest, error)

	// ListActive retrieves all non-terminal rides.
	ListActive(ctx context.Context) ([]*domain.RideRequest, error)

	// Update updates an existing ride.
	Update(ctx context.Context, ride *domain.RideRequest) error

	// UpdatePair updates two rides atomically; both writes commit or
	// neither does. Merges rely on this to never persist halfway.
	UpdatePair(ctx context.Context, a, b *domain.RideRequest) error
}
