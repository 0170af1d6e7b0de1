package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"buggy/internal/domain"
)

const buggyLocationKey = "buggies:locations"

// ErrNoTelemetry is returned when a driver has no known position.
var ErrNoTelemetry = errors.New("no telemetry for driver")

// TelemetryStore tracks live buggy positions in a Redis GEO set.
type TelemetryStore struct {
	client *redis.Client
}

// NewTelemetryStore creates a new TelemetryStore.
func NewTelemetryStore(client *redis.Client) *TelemetryStore {
	return &TelemetryStore{client: client}
}

// UpdateLocation stores a driver's position using GEOADD.
func (s *TelemetryStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, buggyLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// GetCoordinates returns the last reported position of a driver.
func (s *TelemetryStore) GetCoordinates(ctx context.Context, driverID string) (domain.Coordinates, error) {
	positions, err := s.client.GeoPos(ctx, buggyLocationKey, driverID).Result()
	if err != nil {
		return domain.Coordinates{}, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return domain.Coordinates{}, ErrNoTelemetry
	}
	return domain.Coordinates{
		Lat: positions[0].Latitude,
		Lng: positions[0].Longitude,
	}, nil
}

// RemoveLocation removes a driver's position from the geo index.
func (s *TelemetryStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, buggyLocationKey, driverID).Err()
}
