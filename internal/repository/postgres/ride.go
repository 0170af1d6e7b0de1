package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"buggy/internal/domain"
	"buggy/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q  Querier
	db *sql.DB // nil when transaction-scoped
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db, db: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, guest_name, room_number, pickup, destination, guest_count, notes,
		status, driver_id, eta_minutes, created_at, confirmed_at, picked_up_at, completed_at,
		is_merged, is_chain_trip, segments, version`

// Create persists a new ride request.
func (r *RideRepository) Create(ctx context.Context, ride *domain.RideRequest) error {
	query := `
		INSERT INTO ride_requests (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	segments, err := marshalSegments(ride.Segments)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		ride.ID,
		ride.GuestName,
		ride.RoomNumber,
		ride.Pickup,
		ride.Destination,
		ride.GuestCount,
		ride.Notes,
		ride.Status,
		nullString(ride.DriverID),
		ride.ETAMinutes,
		ride.CreatedAt,
		nullTime(ride.ConfirmedAt),
		nullTime(ride.PickedUpAt),
		nullTime(ride.CompletedAt),
		ride.IsMerged,
		ride.IsChainTrip,
		segments,
		ride.Version,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	query := `SELECT ` + rideColumns + ` FROM ride_requests WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListActive retrieves all non-terminal rides ordered by creation time.
func (r *RideRepository) ListActive(ctx context.Context) ([]*domain.RideRequest, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM ride_requests
		WHERE status NOT IN ('COMPLETED', 'CANCELLED')
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.RideRequest
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}

	return rides, rows.Err()
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.RideRequest) error {
	query := `
		UPDATE ride_requests
		SET guest_name = $2, room_number = $3, pickup = $4, destination = $5,
			guest_count = $6, notes = $7, status = $8, driver_id = $9,
			eta_minutes = $10, created_at = $11, confirmed_at = $12,
			picked_up_at = $13, completed_at = $14, is_merged = $15,
			is_chain_trip = $16, segments = $17, version = $18
		WHERE id = $1
	`

	segments, err := marshalSegments(ride.Segments)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.GuestName,
		ride.RoomNumber,
		ride.Pickup,
		ride.Destination,
		ride.GuestCount,
		ride.Notes,
		ride.Status,
		nullString(ride.DriverID),
		ride.ETAMinutes,
		ride.CreatedAt,
		nullTime(ride.ConfirmedAt),
		nullTime(ride.PickedUpAt),
		nullTime(ride.CompletedAt),
		ride.IsMerged,
		ride.IsChainTrip,
		segments,
		ride.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePair updates two rides in a single transaction. Merges write
// the base and the absorbed ride together; after a crash the database
// must never hold one side of a merge without the other.
func (r *RideRepository) UpdatePair(ctx context.Context, a, b *domain.RideRequest) error {
	if r.db == nil {
		// Already running inside a caller-owned transaction.
		if err := r.Update(ctx, a); err != nil {
			return err
		}
		return r.Update(ctx, b)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := NewRideRepositoryWithTx(tx)
	if err := txRepo.Update(ctx, a); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := txRepo.Update(ctx, b); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.RideRequest, error) {
	var ride domain.RideRequest
	var driverID sql.NullString
	var confirmedAt, pickedUpAt, completedAt sql.NullTime
	var segments []byte

	err := row.Scan(
		&ride.ID,
		&ride.GuestName,
		&ride.RoomNumber,
		&ride.Pickup,
		&ride.Destination,
		&ride.GuestCount,
		&ride.Notes,
		&ride.Status,
		&driverID,
		&ride.ETAMinutes,
		&ride.CreatedAt,
		&confirmedAt,
		&pickedUpAt,
		&completedAt,
		&ride.IsMerged,
		&ride.IsChainTrip,
		&segments,
		&ride.Version,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if confirmedAt.Valid {
		ride.ConfirmedAt = confirmedAt.Time
	}
	if pickedUpAt.Valid {
		ride.PickedUpAt = pickedUpAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &ride.Segments); err != nil {
			return nil, err
		}
	}

	return &ride, nil
}

func marshalSegments(segments []domain.RouteSegment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	return json.Marshal(segments)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
