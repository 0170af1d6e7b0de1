package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"buggy/internal/domain"
	"buggy/internal/geo"
	"buggy/internal/observability"
	"buggy/internal/redis"
	"buggy/internal/repository"
)

// DefaultMergedGuestName labels a merged ride when neither original
// request carried a guest name.
const DefaultMergedGuestName = "Multiple Guests"

// mergeLockTTL bounds how long a crashed accept can hold the merge
// lock.
const mergeLockTTL = 10 * time.Second

// MergeService pairs compatible pending rides into a single multi-stop
// trip. Route optimization enumerates every permutation of the
// deduplicated waypoints; this is acceptable only because two merged
// rides bound the set at 4 waypoints (24 orderings). An N-way merge
// must switch to branch-and-bound before raising that bound.
type MergeService struct {
	rides     *RideService
	directory *DirectoryService
	resolver  *LocationResolver
	estimator *ETAEstimator
	telemetry redis.TelemetryStoreInterface
	cache     redis.CacheStoreInterface
	locks     redis.LockStoreInterface
	notifier  *NotificationService
	logger    *slog.Logger
}

// NewMergeService creates a new MergeService.
func NewMergeService(rides *RideService, directory *DirectoryService, resolver *LocationResolver, estimator *ETAEstimator, telemetry redis.TelemetryStoreInterface, cache redis.CacheStoreInterface, locks redis.LockStoreInterface, notifier *NotificationService, logger *slog.Logger) *MergeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeService{
		rides:     rides,
		directory: directory,
		resolver:  resolver,
		estimator: estimator,
		telemetry: telemetry,
		cache:     cache,
		locks:     locks,
		notifier:  notifier,
		logger:    logger,
	}
}

// CanCombine reports whether two rides may share a buggy. Symmetric.
func (s *MergeService) CanCombine(a, b *domain.RideRequest) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	if a.Status != domain.RideStatusSearching || b.Status != domain.RideStatusSearching {
		return false
	}
	return a.GuestCount+b.GuestCount <= domain.MaxGuestCount
}

// PairKey builds the order-independent dismissal key for a ride pair.
func PairKey(idA, idB string) string {
	if idB < idA {
		idA, idB = idB, idA
	}
	return idA + ":" + idB
}

// Suggest scans the pending rides in creation order and returns the
// first combinable, non-dismissed pair with its optimized route. A nil
// suggestion with nil error means nothing is currently mergeable.
func (s *MergeService) Suggest(ctx context.Context) (*domain.MergeSuggestion, error) {
	pending := s.rides.ListActive(ctx)

	searching := pending[:0]
	for _, ride := range pending {
		if ride.Status == domain.RideStatusSearching {
			searching = append(searching, ride)
		}
	}

	for i := 0; i < len(searching); i++ {
		for j := i + 1; j < len(searching); j++ {
			a, b := searching[i], searching[j]
			if !s.CanCombine(a, b) {
				continue
			}
			if s.isDismissed(ctx, a.ID, b.ID) {
				continue
			}

			route, totalKm, chain := s.buildRoute(ctx, a, b)
			return &domain.MergeSuggestion{
				RideA:           a,
				RideB:           b,
				Route:           route,
				TotalDistanceKm: totalKm,
				IsChainTrip:     chain,
			}, nil
		}
	}
	return nil, nil
}

// isDismissed treats a dismissal-store failure as "not dismissed";
// re-surfacing a rejected pair beats hiding a valid one.
func (s *MergeService) isDismissed(ctx context.Context, idA, idB string) bool {
	if s.cache == nil {
		return false
	}
	dismissed, err := s.cache.IsDismissed(ctx, PairKey(idA, idB))
	if err != nil {
		s.logger.Warn("dismissal lookup failed", "pair", PairKey(idA, idB), "error", err)
		return false
	}
	return dismissed
}

// Accept merges rideB into the earlier-created base ride, removing the
// other. When the accepting driver is known the merged ride advances
// straight to ARRIVING with a fresh ETA. A persistence failure leaves
// both original rides untouched.
func (s *MergeService) Accept(ctx context.Context, idA, idB, driverID string) (*domain.RideRequest, error) {
	if idA == "" || idB == "" || idA == idB {
		return nil, ErrInvalidRideID
	}

	if s.locks != nil {
		acquired, err := s.locks.AcquireMergeLock(ctx, mergeLockTTL)
		if err != nil || !acquired {
			return nil, ErrMergeInProgress
		}
		defer func() {
			if err := s.locks.ReleaseMergeLock(ctx); err != nil {
				s.logger.Warn("merge lock release failed", "error", err)
			}
		}()
	}

	merged, removed, err := s.applyMerge(ctx, idA, idB, driverID)
	if err != nil {
		return nil, err
	}

	observability.MergesAccepted.Inc()
	if s.notifier != nil {
		s.notifier.NotifyRideMerged(ctx, merged, removed.RoomNumber)
	}
	s.rides.publish(merged, domain.RideEventMerged)

	return merged, nil
}

// Reject records the pair's dismissal so it is not re-suggested. Other
// pairs stay eligible.
func (s *MergeService) Reject(ctx context.Context, idA, idB string) error {
	if idA == "" || idB == "" || idA == idB {
		return ErrInvalidRideID
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.RecordDismissal(ctx, PairKey(idA, idB)); err != nil {
		return err
	}
	observability.MergesRejected.Inc()
	return nil
}

// applyMerge performs the merge under the ride store's write lock with
// the usual persist-then-commit discipline: both rides are written in
// one repository transaction before memory changes.
func (s *MergeService) applyMerge(ctx context.Context, idA, idB, driverID string) (*domain.RideRequest, *domain.RideRequest, error) {
	store := s.rides

	store.mu.Lock()
	defer store.mu.Unlock()

	a, okA := store.rides[idA]
	b, okB := store.rides[idB]
	if !okA || !okB {
		return nil, nil, repository.ErrNotFound
	}
	if !s.CanCombine(a, b) {
		return nil, nil, ErrRidesNotCombinable
	}

	base, other := a, b
	if other.CreatedAt.Before(base.CreatedAt) {
		base, other = other, base
	}

	route, _, chain := s.buildRoute(ctx, base, other)

	merged := base.Clone()
	merged.GuestName = mergeNames(base.GuestName, other.GuestName)
	merged.RoomNumber = mergeRooms(base.RoomNumber, other.RoomNumber)
	merged.Notes = mergeNotes(base.Notes, other.Notes)
	merged.GuestCount = domain.ClampGuestCount(base.GuestCount + other.GuestCount)
	merged.IsMerged = true
	merged.IsChainTrip = chain
	merged.Segments = route
	if len(route) > 0 {
		merged.Pickup = route[0].From
		merged.Destination = route[len(route)-1].To
	}
	merged.Version++

	if driverID == "" {
		driverID = base.DriverID
	}
	if driverID != "" {
		merged.Status = domain.RideStatusArriving
		merged.DriverID = driverID
		merged.ETAMinutes = s.rides.estimateDriverETA(ctx, driverID, merged.Pickup)
		if merged.ConfirmedAt.IsZero() {
			merged.ConfirmedAt = store.now()
		}
	}

	cancelled := other.Clone()
	cancelled.Status = domain.RideStatusCancelled
	cancelled.Version++

	if err := store.repo.UpdatePair(ctx, merged, cancelled); err != nil {
		return nil, nil, err
	}

	store.rides[merged.ID] = merged
	delete(store.rides, cancelled.ID)
	store.syncActiveGauge()

	return merged.Clone(), cancelled, nil
}

// waypoint is one deduplicated stop on a candidate merged route, with
// the rides (0 = ride A, 1 = ride B) boarding and alighting there.
type waypoint struct {
	ref      string
	coords   domain.Coordinates
	resolved bool
	pickups  []int
	drops    []int
}

// buildRoute computes the stop order and per-leg manifests for a pair.
// Distance is zero when any waypoint coordinate is unknown and the
// timestamp fallback was used.
func (s *MergeService) buildRoute(ctx context.Context, a, b *domain.RideRequest) ([]domain.RouteSegment, float64, bool) {
	waypoints := s.collectWaypoints(ctx, a, b)

	chain := false
	for _, wp := range waypoints {
		if (contains(wp.drops, 0) && contains(wp.pickups, 1)) ||
			(contains(wp.drops, 1) && contains(wp.pickups, 0)) {
			chain = true
		}
	}

	order, totalKm, optimized := bestOrder(waypoints)
	if !optimized {
		order = chainOrder(waypoints, a, b)
	}
	return buildSegments(waypoints, order, a, b), totalKm, chain
}

// chainOrder is the timestamp fallback: the earlier ride's pickup and
// destination, then the other ride's, with consecutive duplicate stops
// collapsed. No distance comparison happens here.
func chainOrder(waypoints []waypoint, a, b *domain.RideRequest) []int {
	index := func(ref string) int {
		norm := normalizeText(ref)
		for i := range waypoints {
			if normalizeText(waypoints[i].ref) == norm {
				return i
			}
		}
		return -1
	}

	var order []int
	for _, ref := range []string{a.Pickup, a.Destination, b.Pickup, b.Destination} {
		i := index(ref)
		if i < 0 {
			continue
		}
		if len(order) > 0 && order[len(order)-1] == i {
			continue
		}
		order = append(order, i)
	}
	return order
}

// collectWaypoints resolves and deduplicates the up-to-four stops of a
// pair. Deduplication is by normalized reference text so "Main Lobby"
// and "main lobby" collapse into one stop.
func (s *MergeService) collectWaypoints(ctx context.Context, a, b *domain.RideRequest) []waypoint {
	var directory []domain.Location
	if s.directory != nil {
		var err error
		directory, err = s.directory.List(ctx)
		if err != nil {
			s.logger.Warn("directory unavailable for route optimization", "error", err)
			directory = nil
		}
	}

	var waypoints []waypoint
	add := func(ref string, ride int, pickup bool) {
		norm := normalizeText(ref)
		for i := range waypoints {
			if normalizeText(waypoints[i].ref) == norm {
				if pickup {
					waypoints[i].pickups = append(waypoints[i].pickups, ride)
				} else {
					waypoints[i].drops = append(waypoints[i].drops, ride)
				}
				return
			}
		}
		wp := waypoint{ref: ref}
		if s.resolver != nil && directory != nil {
			wp.coords, wp.resolved = s.resolver.Resolve(ref, directory)
		}
		if pickup {
			wp.pickups = []int{ride}
		} else {
			wp.drops = []int{ride}
		}
		waypoints = append(waypoints, wp)
	}

	add(a.Pickup, 0, true)
	add(a.Destination, 0, false)
	add(b.Pickup, 1, true)
	add(b.Destination, 1, false)
	return waypoints
}

// bestOrder picks the stop order. With all coordinates known it tries
// every permutation that keeps each ride's pickup strictly before its
// destination and minimizes total great-circle distance, first found
// winning ties. The third return value is false when any coordinate is
// unresolved or no permutation satisfies the constraints; callers then
// fall back to the timestamp chain with distance unknown.
func bestOrder(waypoints []waypoint) ([]int, float64, bool) {
	for _, wp := range waypoints {
		if !wp.resolved {
			return nil, 0, false
		}
	}

	identity := make([]int, len(waypoints))
	for i := range identity {
		identity[i] = i
	}

	var (
		best     []int
		bestDist float64
		found    bool
	)
	permute(identity, func(order []int) {
		if !orderValid(waypoints, order) {
			return
		}
		dist := orderDistance(waypoints, order)
		if !found || dist < bestDist {
			best = append(best[:0], order...)
			bestDist = dist
			found = true
		}
	})
	if !found {
		return nil, 0, false
	}
	return best, bestDist, true
}

// orderValid checks the per-ride constraint: every ride boards before
// it alights. A shared waypoint can be one ride's drop and the other's
// pickup at the same index.
func orderValid(waypoints []waypoint, order []int) bool {
	for ride := 0; ride < 2; ride++ {
		pickupIdx, dropIdx := -1, -1
		for pos, wi := range order {
			if contains(waypoints[wi].pickups, ride) {
				pickupIdx = pos
			}
			if contains(waypoints[wi].drops, ride) {
				dropIdx = pos
			}
		}
		if pickupIdx < 0 || dropIdx < 0 || pickupIdx >= dropIdx {
			return false
		}
	}
	return true
}

func orderDistance(waypoints []waypoint, order []int) float64 {
	path := make([]domain.Coordinates, len(order))
	for i, wi := range order {
		path[i] = waypoints[wi].coords
	}
	return geo.PathKm(path)
}

// permute generates every permutation of a copy of items in a stable
// enumeration order (Heap's algorithm).
func permute(items []int, visit func([]int)) {
	work := append([]int(nil), items...)
	var rec func(k int)
	rec = func(k int) {
		if k == 1 {
			visit(work)
			return
		}
		for i := 0; i < k; i++ {
			rec(k - 1)
			if k%2 == 0 {
				work[i], work[k-1] = work[k-1], work[i]
			} else {
				work[0], work[k-1] = work[k-1], work[0]
			}
		}
	}
	rec(len(work))
}

// buildSegments walks consecutive stops of the chosen order and tracks
// which guest groups are aboard on each leg.
func buildSegments(waypoints []waypoint, order []int, a, b *domain.RideRequest) []domain.RouteSegment {
	manifests := [2]domain.ManifestEntry{
		{Name: a.GuestName, RoomNumber: a.RoomNumber, Count: a.GuestCount},
		{Name: b.GuestName, RoomNumber: b.RoomNumber, Count: b.GuestCount},
	}

	onboard := [2]bool{}
	segments := make([]domain.RouteSegment, 0, len(order)-1)
	for pos := 0; pos < len(order); pos++ {
		wp := waypoints[order[pos]]
		for _, ride := range wp.drops {
			onboard[ride] = false
		}
		for _, ride := range wp.pickups {
			onboard[ride] = true
		}

		if pos == len(order)-1 {
			break
		}
		next := waypoints[order[pos+1]]

		var manifest []domain.ManifestEntry
		for ride := 0; ride < 2; ride++ {
			if onboard[ride] {
				manifest = append(manifest, manifests[ride])
			}
		}
		segments = append(segments, domain.RouteSegment{
			From:       wp.ref,
			To:         next.ref,
			FromCoords: coordsPtr(wp),
			ToCoords:   coordsPtr(next),
			Manifest:   manifest,
		})
	}
	return segments
}

func coordsPtr(wp waypoint) *domain.Coordinates {
	if !wp.resolved {
		return nil
	}
	c := wp.coords
	return &c
}

func contains(rides []int, ride int) bool {
	for _, r := range rides {
		if r == ride {
			return true
		}
	}
	return false
}

func mergeNames(a, b string) string {
	parts := nonEmpty(a, b)
	if len(parts) == 0 {
		return DefaultMergedGuestName
	}
	return strings.Join(parts, " + ")
}

func mergeRooms(a, b string) string {
	return strings.Join(nonEmpty(a, b), ", ")
}

func mergeNotes(a, b string) string {
	return strings.Join(nonEmpty(a, b), " | ")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
