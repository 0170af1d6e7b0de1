package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"buggy/internal/domain"
	"buggy/internal/redis"
	"buggy/internal/repository"
)

// errInjectedWrite is the failure returned by FailUpdateFor matches.
var errInjectedWrite = errors.New("injected write failure")

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.RideRequest

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error

	// FailUpdateFor fails any update touching the given ride ID,
	// simulating a write that dies partway through a pair.
	FailUpdateFor string
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.RideRequest),
	}
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.RideRequest) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ride.Clone(), nil
}

func (m *MockRideRepository) ListActive(ctx context.Context) ([]*domain.RideRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.RideRequest, 0, len(m.rides))
	for _, ride := range m.rides {
		if ride.Status.Terminal() {
			continue
		}
		result = append(result, ride.Clone())
	}
	return result, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.RideRequest) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if m.FailUpdateFor != "" && ride.ID == m.FailUpdateFor {
		return errInjectedWrite
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	m.rides[ride.ID] = ride.Clone()
	return nil
}

// UpdatePair mirrors the transactional pair write: on any failure
// neither ride is stored.
func (m *MockRideRepository) UpdatePair(ctx context.Context, a, b *domain.RideRequest) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if m.FailUpdateFor != "" && (a.ID == m.FailUpdateFor || b.ID == m.FailUpdateFor) {
		return errInjectedWrite
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[a.ID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := m.rides[b.ID]; !ok {
		return repository.ErrNotFound
	}
	m.rides[a.ID] = a.Clone()
	m.rides[b.ID] = b.Clone()
	return nil
}

// StoredRide returns the persisted ride for test assertions.
func (m *MockRideRepository) StoredRide(id string) *domain.RideRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	return ride.Clone()
}

// ──────────────────────────────────────────────
// MOCK LOCATION REPOSITORY
// ──────────────────────────────────────────────

// MockLocationRepository is a mock implementation of LocationRepository.
type MockLocationRepository struct {
	mu        sync.RWMutex
	locations []domain.Location

	ListCallCount int32
	ListError     error
}

// NewMockLocationRepository creates a mock directory seeded with
// locations.
func NewMockLocationRepository(locations ...domain.Location) *MockLocationRepository {
	return &MockLocationRepository{locations: locations}
}

func (m *MockLocationRepository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	atomic.AddInt32(&m.ListCallCount, 1)
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Location(nil), m.locations...), nil
}

// ──────────────────────────────────────────────
// MOCK TELEMETRY STORE
// ──────────────────────────────────────────────

// MockTelemetryStore is an in-memory TelemetryStoreInterface.
type MockTelemetryStore struct {
	mu        sync.RWMutex
	positions map[string]domain.Coordinates

	GetError error

	// GetHook runs at the start of GetCoordinates; tests use it to
	// interleave state changes with an in-flight refresh pass.
	GetHook func(driverID string)
}

// NewMockTelemetryStore creates a new mock telemetry store.
func NewMockTelemetryStore() *MockTelemetryStore {
	return &MockTelemetryStore{positions: make(map[string]domain.Coordinates)}
}

func (m *MockTelemetryStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[driverID] = domain.Coordinates{Lat: lat, Lng: lng}
	return nil
}

func (m *MockTelemetryStore) GetCoordinates(ctx context.Context, driverID string) (domain.Coordinates, error) {
	if m.GetHook != nil {
		m.GetHook(driverID)
	}
	if m.GetError != nil {
		return domain.Coordinates{}, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coords, ok := m.positions[driverID]
	if !ok {
		return domain.Coordinates{}, redis.ErrNoTelemetry
	}
	return coords, nil
}

func (m *MockTelemetryStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is an in-memory CacheStoreInterface.
type MockCacheStore struct {
	mu        sync.RWMutex
	directory []domain.Location
	hasDir    bool
	dismissed map[string]bool

	GetDirectoryError error
	DismissalError    error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{dismissed: make(map[string]bool)}
}

func (m *MockCacheStore) GetDirectory(ctx context.Context) ([]domain.Location, error) {
	if m.GetDirectoryError != nil {
		return nil, m.GetDirectoryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasDir {
		return nil, nil
	}
	return append([]domain.Location(nil), m.directory...), nil
}

func (m *MockCacheStore) SetDirectory(ctx context.Context, locations []domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directory = append([]domain.Location(nil), locations...)
	m.hasDir = true
	return nil
}

func (m *MockCacheStore) InvalidateDirectory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directory = nil
	m.hasDir = false
	return nil
}

func (m *MockCacheStore) RecordDismissal(ctx context.Context, pairKey string) error {
	if m.DismissalError != nil {
		return m.DismissalError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dismissed[pairKey] = true
	return nil
}

func (m *MockCacheStore) IsDismissed(ctx context.Context, pairKey string) (bool, error) {
	if m.DismissalError != nil {
		return false, m.DismissalError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dismissed[pairKey], nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory LockStoreInterface.
type MockLockStore struct {
	mu        sync.Mutex
	mergeHeld bool
	rideHeld  map[string]bool

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{rideHeld: make(map[string]bool)}
}

func (m *MockLockStore) AcquireMergeLock(ctx context.Context, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mergeHeld {
		return false, nil
	}
	m.mergeHeld = true
	return true, nil
}

func (m *MockLockStore) ReleaseMergeLock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeHeld = false
	return nil
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rideHeld[rideID] {
		return false, nil
	}
	m.rideHeld[rideID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseRideLock(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rideHeld, rideID)
	return nil
}

// Interface compliance checks.
var (
	_ repository.RideRepository     = (*MockRideRepository)(nil)
	_ repository.LocationRepository = (*MockLocationRepository)(nil)
	_ redis.TelemetryStoreInterface = (*MockTelemetryStore)(nil)
	_ redis.CacheStoreInterface     = (*MockCacheStore)(nil)
	_ redis.LockStoreInterface      = (*MockLockStore)(nil)
)
