package postgres

import (
	"context"
	"database/sql"

	"buggy/internal/domain"
)

// LocationRepository is a PostgreSQL implementation of
// repository.LocationRepository. The locations table is written by the
// admin screens; dispatch only reads it.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL location repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{q: db}
}

// ListLocations retrieves the full location directory.
func (r *LocationRepository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	query := `SELECT id, name, lat, lng, category FROM locations ORDER BY name ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lng, &loc.Category); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}

	return locations, rows.Err()
}
