package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"buggy/internal/config"
	"buggy/internal/domain"
	"buggy/internal/observability"
	"buggy/internal/redis"
	"buggy/internal/repository"
)

// EventPublisher pushes discrete ride state changes to subscribers.
type EventPublisher interface {
	Publish(event domain.RideEvent)
}

// RideService owns the lifecycle of every active ride request. The
// in-memory active set is the single source of truth for the running
// process; every committed transition is first written through the
// repository, then applied to memory, so a failed write never leaves a
// half-applied transition behind.
type RideService struct {
	mu    sync.RWMutex
	rides map[string]*domain.RideRequest

	repo      repository.RideRepository
	estimator *ETAEstimator
	resolver  *LocationResolver
	directory *DirectoryService
	telemetry redis.TelemetryStoreInterface
	notifier  *NotificationService
	events    EventPublisher
	locks     redis.LockStoreInterface
	policy    config.CancelPolicyConfig
	refresh   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// rideLockTTL bounds how long a crashed console can hold a ride lock.
const rideLockTTL = 5 * time.Second

// RideServiceDeps contains the collaborators for a RideService.
// Telemetry, Notifier, and Events may be nil; related behavior is then
// skipped.
type RideServiceDeps struct {
	Repo      repository.RideRepository
	Estimator *ETAEstimator
	Resolver  *LocationResolver
	Directory *DirectoryService
	Telemetry redis.TelemetryStoreInterface
	Notifier  *NotificationService
	Events    EventPublisher
	Locks     redis.LockStoreInterface
	Cancel    config.CancelPolicyConfig
	Dispatch  config.DispatchConfig
	Logger    *slog.Logger

	// Now overrides the clock; tests use it to control elapsed-time
	// policy without sleeping.
	Now func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(deps RideServiceDeps) *RideService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	refresh := deps.Dispatch.RefreshInterval
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	return &RideService{
		rides:     make(map[string]*domain.RideRequest),
		repo:      deps.Repo,
		estimator: deps.Estimator,
		resolver:  deps.Resolver,
		directory: deps.Directory,
		telemetry: deps.Telemetry,
		notifier:  deps.Notifier,
		events:    deps.Events,
		locks:     deps.Locks,
		policy:    deps.Cancel,
		refresh:   refresh,
		logger:    logger,
		now:       now,
	}
}

// Restore loads the active rides from the repository into memory, for
// process restarts. Terminal rides are skipped.
func (s *RideService) Restore(ctx context.Context) error {
	rides, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ride := range rides {
		if ride.Status.Terminal() {
			continue
		}
		s.rides[ride.ID] = ride
	}
	return nil
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	GuestName   string
	RoomNumber  string
	Pickup      string
	Destination string
	GuestCount  int
	Notes       string
}

// Create validates and creates a new ride request in SEARCHING state.
func (s *RideService) Create(ctx context.Context, req CreateRideRequest) (*domain.RideRequest, error) {
	if req.GuestName == "" {
		return nil, ErrInvalidGuestName
	}
	if req.Pickup == "" {
		return nil, ErrMissingPickup
	}
	if req.Destination == "" {
		return nil, ErrMissingDestination
	}
	if normalizeText(req.Pickup) == normalizeText(req.Destination) {
		return nil, ErrSamePickupDestination
	}

	ride := &domain.RideRequest{
		ID:          uuid.New().String(),
		GuestName:   req.GuestName,
		RoomNumber:  req.RoomNumber,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		GuestCount:  domain.ClampGuestCount(req.GuestCount),
		Notes:       req.Notes,
		Status:      domain.RideStatusSearching,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rides[ride.ID] = ride
	s.mu.Unlock()

	observability.RidesCreated.Inc()
	s.syncActiveGauge()

	return ride.Clone(), nil
}

// Get returns a ride by ID, falling back to the repository for rides
// that already left the active set.
func (s *RideService) Get(ctx context.Context, id string) (*domain.RideRequest, error) {
	if id == "" {
		return nil, ErrInvalidRideID
	}

	s.mu.RLock()
	ride, ok := s.rides[id]
	s.mu.RUnlock()
	if ok {
		return ride.Clone(), nil
	}

	return s.repo.GetByID(ctx, id)
}

// ListActive returns all active rides ordered by creation time.
func (s *RideService) ListActive(_ context.Context) []*domain.RideRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rides := make([]*domain.RideRequest, 0, len(s.rides))
	for _, ride := range s.rides {
		rides = append(rides, ride.Clone())
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].CreatedAt.Before(rides[j].CreatedAt)
	})
	return rides
}

// Assign puts a driver on a SEARCHING ride. When etaMinutes is zero or
// negative the ETA is estimated from the driver's live position.
func (s *RideService) Assign(ctx context.Context, rideID, driverID string, etaMinutes int) (*domain.RideRequest, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	release, err := s.lockRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer release()

	if etaMinutes <= 0 {
		s.mu.RLock()
		pickup := ""
		if ride, ok := s.rides[rideID]; ok {
			pickup = ride.Pickup
		}
		s.mu.RUnlock()
		etaMinutes = s.estimateDriverETA(ctx, driverID, pickup)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusSearching {
		return nil, ErrRideNotSearching
	}

	next := ride.Clone()
	next.Status = domain.RideStatusAssigned
	next.DriverID = driverID
	next.ETAMinutes = etaMinutes
	next.ConfirmedAt = s.now()
	next.Version++

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, err
	}
	s.rides[rideID] = next

	s.afterTransition(ctx, next, domain.RideEventAssigned)
	return next.Clone(), nil
}

// MarkArriving flags that the buggy is close to the pickup point. The
// arriving clock keeps running from ConfirmedAt.
func (s *RideService) MarkArriving(ctx context.Context, rideID string) (*domain.RideRequest, error) {
	return s.transition(ctx, rideID, func(ride *domain.RideRequest) error {
		if ride.Status != domain.RideStatusAssigned {
			return ErrInvalidTransition
		}
		ride.Status = domain.RideStatusArriving
		return nil
	}, domain.RideEventArriving)
}

// MarkPickedUp puts the guests aboard. PickedUpAt is set exactly once.
func (s *RideService) MarkPickedUp(ctx context.Context, rideID string) (*domain.RideRequest, error) {
	return s.transition(ctx, rideID, func(ride *domain.RideRequest) error {
		if ride.Status != domain.RideStatusAssigned && ride.Status != domain.RideStatusArriving {
			return ErrInvalidTransition
		}
		ride.Status = domain.RideStatusOnTrip
		if ride.PickedUpAt.IsZero() {
			ride.PickedUpAt = s.now()
		}
		return nil
	}, domain.RideEventPickedUp)
}

// Complete finishes an ON_TRIP ride and retires it from the active set.
func (s *RideService) Complete(ctx context.Context, rideID string) (*domain.RideRequest, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	release, err := s.lockRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusOnTrip {
		return nil, ErrInvalidTransition
	}

	next := ride.Clone()
	next.Status = domain.RideStatusCompleted
	next.CompletedAt = s.now()
	next.Version++

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, err
	}
	delete(s.rides, rideID)

	observability.RidesCompleted.Inc()
	s.afterTransition(ctx, next, domain.RideEventCompleted)
	return next.Clone(), nil
}

// Cancel removes a ride from the active set, subject to the state and
// elapsed-time policy. Picked-up guests cannot self-cancel.
func (s *RideService) Cancel(ctx context.Context, rideID, actor string) (*domain.RideRequest, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	release, err := s.lockRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	switch ride.Status {
	case domain.RideStatusSearching:
		// Cancellable any time while still searching.
	case domain.RideStatusAssigned, domain.RideStatusArriving:
		if s.now().Sub(ride.ConfirmedAt) < s.policy.AssignedGrace {
			return nil, ErrCancelTooEarly
		}
	default:
		return nil, ErrRideNotCancellable
	}

	next := ride.Clone()
	next.Status = domain.RideStatusCancelled
	next.Version++

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, err
	}
	delete(s.rides, rideID)

	observability.RidesCancelled.Inc()
	s.syncActiveGauge()
	if s.notifier != nil {
		s.notifier.NotifyRideCancelled(ctx, next, actor)
	}
	s.publish(next, domain.RideEventCancelled)
	return next.Clone(), nil
}

// CancelWarningLevel grades how overdue a waiting ride is.
type CancelWarningLevel string

const (
	WarnNone   CancelWarningLevel = "none"
	WarnNotice CancelWarningLevel = "notice"
	WarnUrgent CancelWarningLevel = "urgent"
)

// CancelState describes whether and how a ride can be cancelled now.
type CancelState struct {
	Allowed bool               `json:"allowed"`
	Warning CancelWarningLevel `json:"warning"`
	Message string             `json:"message,omitempty"`
}

// CancelState evaluates the cancellation policy for a ride without
// changing anything.
func (s *RideService) CancelState(rideID string) (CancelState, error) {
	s.mu.RLock()
	ride, ok := s.rides[rideID]
	s.mu.RUnlock()
	if !ok {
		return CancelState{}, repository.ErrNotFound
	}

	now := s.now()
	switch ride.Status {
	case domain.RideStatusSearching:
		state := CancelState{Allowed: true, Warning: WarnNone}
		if now.Sub(ride.CreatedAt) >= s.policy.SearchWarnAfter {
			state.Warning = WarnNotice
			state.Message = "Still looking for a buggy. You may cancel and try again later."
		}
		return state, nil
	case domain.RideStatusAssigned, domain.RideStatusArriving:
		elapsed := now.Sub(ride.ConfirmedAt)
		state := CancelState{Allowed: elapsed >= s.policy.AssignedGrace, Warning: WarnNone}
		if !state.Allowed {
			wait := (s.policy.AssignedGrace - elapsed).Round(time.Second)
			state.Message = "A driver is already on the way. Please wait " + wait.String() + " before cancelling."
		} else if elapsed >= s.policy.AssignedUrgentAfter {
			state.Warning = WarnUrgent
			state.Message = "The buggy is overdue. Contact the front desk or cancel."
		}
		return state, nil
	default:
		return CancelState{Allowed: false, Message: "Rides in progress cannot be cancelled."}, nil
	}
}

// lockRide takes the distributed per-ride lock so two dispatcher
// consoles cannot drive the same ride at once. A lock-store outage
// degrades to in-process locking only. The returned release func is
// never nil on success.
func (s *RideService) lockRide(ctx context.Context, rideID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	acquired, err := s.locks.AcquireRideLock(ctx, rideID, rideLockTTL)
	if err != nil {
		s.logger.Warn("ride lock unavailable", "ride_id", rideID, "error", err)
		return func() {}, nil
	}
	if !acquired {
		return nil, ErrRideBusy
	}
	return func() {
		if err := s.locks.ReleaseRideLock(ctx, rideID); err != nil {
			s.logger.Warn("ride lock release failed", "ride_id", rideID, "error", err)
		}
	}, nil
}

// transition applies a guarded mutation under the write lock with the
// persist-then-commit discipline shared by all status changes.
func (s *RideService) transition(ctx context.Context, rideID string, mutate func(*domain.RideRequest) error, event domain.RideEventType) (*domain.RideRequest, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	release, err := s.lockRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	next := ride.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version++

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, err
	}
	s.rides[rideID] = next

	s.afterTransition(ctx, next, event)
	return next.Clone(), nil
}

// afterTransition emits the notification and event for a committed
// status change. Callers hold the write lock; both paths are
// non-blocking.
func (s *RideService) afterTransition(ctx context.Context, ride *domain.RideRequest, event domain.RideEventType) {
	s.syncActiveGauge()
	if s.notifier != nil {
		switch event {
		case domain.RideEventAssigned:
			s.notifier.NotifyDriverAssigned(ctx, ride)
		case domain.RideEventArriving:
			s.notifier.NotifyDriverArriving(ctx, ride)
		case domain.RideEventPickedUp:
			s.notifier.NotifyPickedUp(ctx, ride)
		case domain.RideEventCompleted:
			s.notifier.NotifyTripCompleted(ctx, ride)
		}
	}
	s.publish(ride, event)
}

func (s *RideService) publish(ride *domain.RideRequest, event domain.RideEventType) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.RideEvent{
		Type:       event,
		RideID:     ride.ID,
		Status:     ride.Status,
		DriverID:   ride.DriverID,
		ETAMinutes: ride.ETAMinutes,
		OccurredAt: s.now(),
	})
}

func (s *RideService) syncActiveGauge() {
	observability.ActiveRides.Set(float64(len(s.rides)))
}

// RunETARefresher periodically recomputes live ETAs for rides that are
// waiting on a driver. All failures on this path are best-effort: the
// last known ETA simply stands.
func (s *RideService) RunETARefresher(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshETAs(ctx)
		}
	}
}

type etaSnapshot struct {
	id       string
	version  int64
	driverID string
	pickup   string
	eta      int
}

// RefreshETAs runs one refresh pass: snapshot the waiting rides, pull
// driver telemetry, and commit only estimates that changed and whose
// ride has not moved on since the snapshot.
func (s *RideService) RefreshETAs(ctx context.Context) {
	if s.telemetry == nil || s.estimator == nil || s.resolver == nil || s.directory == nil {
		return
	}

	s.mu.RLock()
	snapshots := make([]etaSnapshot, 0, len(s.rides))
	for _, ride := range s.rides {
		if ride.Status != domain.RideStatusAssigned && ride.Status != domain.RideStatusArriving {
			continue
		}
		snapshots = append(snapshots, etaSnapshot{
			id:       ride.ID,
			version:  ride.Version,
			driverID: ride.DriverID,
			pickup:   ride.Pickup,
			eta:      ride.ETAMinutes,
		})
	}
	s.mu.RUnlock()

	if len(snapshots) == 0 {
		return
	}

	directory, err := s.directory.List(ctx)
	if err != nil {
		s.logger.Warn("eta refresh skipped", "error", err)
		return
	}

	for _, snap := range snapshots {
		coords, err := s.telemetry.GetCoordinates(ctx, snap.driverID)
		if err != nil {
			s.logger.Debug("no telemetry for eta refresh", "driver_id", snap.driverID, "error", err)
			continue
		}

		pickup, ok := s.resolver.Resolve(snap.pickup, directory)
		if !ok {
			continue
		}

		eta := s.estimator.EstimateBetween(coords, pickup)
		if eta == snap.eta {
			continue
		}

		s.commitETA(ctx, snap, eta)
	}
}

// commitETA writes a refreshed ETA, re-checking the ride version so a
// stale estimate never overwrites a newer state.
func (s *RideService) commitETA(ctx context.Context, snap etaSnapshot, eta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[snap.id]
	if !ok || ride.Version != snap.version {
		return
	}
	if ride.Status != domain.RideStatusAssigned && ride.Status != domain.RideStatusArriving {
		return
	}

	next := ride.Clone()
	next.ETAMinutes = eta
	next.Version++

	if err := s.repo.Update(ctx, next); err != nil {
		s.logger.Warn("eta refresh write failed", "ride_id", snap.id, "error", err)
		return
	}
	s.rides[snap.id] = next
	observability.ETARefreshes.Inc()
}

// estimateDriverETA computes an assignment ETA from live telemetry,
// falling back to the clamp floor when anything is missing.
func (s *RideService) estimateDriverETA(ctx context.Context, driverID, pickup string) int {
	if s.estimator == nil {
		return 0
	}
	fallback := s.estimator.EstimateMinutes(0)

	if s.telemetry == nil || s.resolver == nil || s.directory == nil {
		return fallback
	}

	coords, err := s.telemetry.GetCoordinates(ctx, driverID)
	if err != nil {
		return fallback
	}

	directory, err := s.directory.List(ctx)
	if err != nil {
		return fallback
	}

	target, ok := s.resolver.Resolve(pickup, directory)
	if !ok {
		return fallback
	}

	return s.estimator.EstimateBetween(coords, target)
}
