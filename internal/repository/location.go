package repository

import (
	"context"

	"buggy/internal/domain"
)

// LocationRepository reads the resort's location directory. The
// directory is owned by the admin content screens; the dispatch core
// only ever lists it.
type LocationRepository interface {
	ListLocations(ctx context.Context) ([]domain.Location, error)
}
