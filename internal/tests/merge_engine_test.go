package tests

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"buggy/internal/config"
	"buggy/internal/domain"
	"buggy/internal/geo"
	"buggy/internal/service"
)

// ──────────────────────────────────────────────
// TEST FIXTURES
// ──────────────────────────────────────────────

func resortDirectory() []domain.Location {
	return []domain.Location{
		{ID: "L1", Name: "Main Lobby", Lat: 10.3000, Lng: 103.8500, Category: domain.CategoryFacility},
		{ID: "L2", Name: "Lagoon Pool", Lat: 10.3050, Lng: 103.8560, Category: domain.CategoryFacility},
		{ID: "L3", Name: "Beach Club", Lat: 10.3120, Lng: 103.8620, Category: domain.CategoryFacility},
		{ID: "L4", Name: "Garden Restaurant", Lat: 10.2980, Lng: 103.8700, Category: domain.CategoryRestaurant},
		{ID: "L5", Name: "Sunset Villa", Lat: 10.2900, Lng: 103.8400, Category: domain.CategoryVilla},
	}
}

type mergeFixture struct {
	rides     *service.RideService
	merges    *service.MergeService
	repo      *MockRideRepository
	cache     *MockCacheStore
	telemetry *MockTelemetryStore
	clock     *fakeClock
}

func newMergeFixture() *mergeFixture {
	repo := NewMockRideRepository()
	cache := NewMockCacheStore()
	clock := newFakeClock()
	telemetry := NewMockTelemetryStore()
	locks := NewMockLockStore()

	dispatch := config.DispatchConfig{AvgSpeedKmh: 12, BufferMinutes: 2, MinETAMinutes: 3, MaxETAMinutes: 20}
	directory := service.NewDirectoryService(NewMockLocationRepository(resortDirectory()...), nil, nil)
	resolver := service.NewLocationResolver(nil)
	estimator := service.NewETAEstimator(dispatch)

	rides := service.NewRideService(service.RideServiceDeps{
		Repo:      repo,
		Estimator: estimator,
		Resolver:  resolver,
		Directory: directory,
		Telemetry: telemetry,
		Cancel:    defaultCancelPolicy(),
		Dispatch:  dispatch,
		Now:       clock.Now,
	})
	merges := service.NewMergeService(rides, directory, resolver, estimator, telemetry, cache, locks, nil, nil)

	return &mergeFixture{rides: rides, merges: merges, repo: repo, cache: cache, telemetry: telemetry, clock: clock}
}

// createRide adds a SEARCHING ride, advancing the clock so creation
// timestamps stay distinct.
func (f *mergeFixture) createRide(t *testing.T, name, pickup, dest string, count int) *domain.RideRequest {
	t.Helper()
	ride, err := f.rides.Create(context.Background(), service.CreateRideRequest{
		GuestName:   name,
		Pickup:      pickup,
		Destination: dest,
		GuestCount:  count,
	})
	if err != nil {
		t.Fatalf("create ride %q: %v", name, err)
	}
	f.clock.Advance(30 * time.Second)
	return ride
}

// ──────────────────────────────────────────────
// 1. FEASIBILITY
// ──────────────────────────────────────────────

func TestCanCombine_Symmetric(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 3)
	b := f.createRide(t, "B", "Main Lobby", "Beach Club", 4)

	if !f.merges.CanCombine(a, b) {
		t.Error("expected rides to be combinable")
	}
	if f.merges.CanCombine(a, b) != f.merges.CanCombine(b, a) {
		t.Error("CanCombine must be symmetric")
	}
}

func TestCanCombine_CapacityExceeded(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 4)
	b := f.createRide(t, "B", "Main Lobby", "Beach Club", 4)

	if f.merges.CanCombine(a, b) {
		t.Error("8 guests must not fit one buggy")
	}
}

func TestCanCombine_NonSearchingRide(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Main Lobby", "Beach Club", 2)

	assigned, err := f.rides.Assign(context.Background(), a.ID, "driver-1", 5)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if f.merges.CanCombine(assigned, b) {
		t.Error("an assigned ride must not be combinable")
	}
}

// ──────────────────────────────────────────────
// 2. SUGGESTIONS & DISMISSALS
// ──────────────────────────────────────────────

func TestSuggest_ReturnsFirstFeasiblePair(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 3)

	suggestion, err := f.merges.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion == nil {
		t.Fatal("expected a suggestion")
	}
	if suggestion.RideA.ID != a.ID || suggestion.RideB.ID != b.ID {
		t.Errorf("expected pair (%s, %s), got (%s, %s)", a.ID, b.ID, suggestion.RideA.ID, suggestion.RideB.ID)
	}
}

func TestSuggest_NoPendingRides_ReturnsNil(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	suggestion, err := f.merges.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion != nil {
		t.Error("expected no suggestion for an empty active set")
	}
}

func TestReject_SuppressesOnlyThatPair(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 3)

	if err := f.merges.Reject(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	suggestion, err := f.merges.Suggest(ctx)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion != nil {
		t.Fatal("expected dismissed pair to be suppressed")
	}

	// A third ride opens new, still-eligible pairs.
	c := f.createRide(t, "C", "Main Lobby", "Beach Club", 2)
	suggestion, err = f.merges.Suggest(ctx)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion == nil {
		t.Fatal("expected a suggestion from the remaining pairs")
	}
	if suggestion.RideB.ID != c.ID && suggestion.RideA.ID != c.ID {
		t.Error("expected the new ride in the suggested pair")
	}
}

func TestSuggest_DismissalStoreFailure_StillSuggests(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 3)
	f.cache.DismissalError = errors.New("redis down")

	suggestion, err := f.merges.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion == nil {
		t.Fatal("a dismissal lookup failure must not hide valid pairs")
	}
}

// ──────────────────────────────────────────────
// 3. ROUTE OPTIMIZATION
// ──────────────────────────────────────────────

func TestMerge_SameRoute_SingleSegment(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()
	a := f.createRide(t, "Nguyen", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "Tran", "Main Lobby", "Lagoon Pool", 3)

	merged, err := f.merges.Accept(ctx, a.ID, b.ID, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if len(merged.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(merged.Segments))
	}
	if merged.IsChainTrip {
		t.Error("shared-route merge is not a chain trip")
	}
	if merged.GuestCount != 5 {
		t.Errorf("expected 5 guests, got %d", merged.GuestCount)
	}

	manifest := merged.Segments[0].Manifest
	if len(manifest) != 2 {
		t.Fatalf("expected both groups in the manifest, got %d", len(manifest))
	}
	total := manifest[0].Count + manifest[1].Count
	if total != 5 {
		t.Errorf("expected manifest total 5, got %d", total)
	}
}

func TestMerge_ChainTrip_Detected(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Lagoon Pool", "Beach Club", 2)

	merged, err := f.merges.Accept(context.Background(), a.ID, b.ID, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !merged.IsChainTrip {
		t.Error("destination of one ride matching pickup of the other must flag a chain trip")
	}
}

// validFourStopOrders lists every ordering of four distinct waypoints
// (aPickup, aDest, bPickup, bDest) that keeps each ride's pickup before
// its destination.
var validFourStopOrders = [][4]int{
	{0, 1, 2, 3}, {0, 2, 1, 3}, {0, 2, 3, 1},
	{2, 0, 1, 3}, {2, 0, 3, 1}, {2, 3, 0, 1},
}

func TestSuggest_RouteIsOptimal(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	f.createRide(t, "A", "Main Lobby", "Garden Restaurant", 2)
	f.createRide(t, "B", "Lagoon Pool", "Beach Club", 2)

	suggestion, err := f.merges.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion == nil {
		t.Fatal("expected a suggestion")
	}

	// Independent brute-force reference over the valid orderings.
	dir := resortDirectory()
	coords := []domain.Coordinates{
		dir[0].Coords(), // Main Lobby   (aPickup)
		dir[3].Coords(), // Garden Restaurant (aDest)
		dir[1].Coords(), // Lagoon Pool  (bPickup)
		dir[2].Coords(), // Beach Club   (bDest)
	}
	best := math.Inf(1)
	for _, order := range validFourStopOrders {
		path := []domain.Coordinates{coords[order[0]], coords[order[1]], coords[order[2]], coords[order[3]]}
		if d := geo.PathKm(path); d < best {
			best = d
		}
	}

	if math.Abs(suggestion.TotalDistanceKm-best) > 1e-9 {
		t.Errorf("selected route %.6f km, brute-force optimum %.6f km", suggestion.TotalDistanceKm, best)
	}
	if len(suggestion.Route) != 3 {
		t.Errorf("four distinct stops must produce 3 segments, got %d", len(suggestion.Route))
	}
}

func TestSuggest_UnresolvedCoordinates_TimestampFallback(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	a := f.createRide(t, "A", "Overwater Bungalow 9", "Helipad", 2)
	b := f.createRide(t, "B", "Stargazing Deck", "Helipad", 2)

	suggestion, err := f.merges.Suggest(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if suggestion == nil {
		t.Fatal("expected a suggestion despite unresolved coordinates")
	}
	if suggestion.TotalDistanceKm != 0 {
		t.Errorf("fallback route has no distance, got %.3f", suggestion.TotalDistanceKm)
	}

	// Earlier ride's legs come first, deduped shared stops and all.
	route := suggestion.Route
	if len(route) == 0 {
		t.Fatal("expected fallback segments")
	}
	if route[0].From != a.Pickup {
		t.Errorf("fallback must start at the earlier ride's pickup, got %q", route[0].From)
	}
	if route[len(route)-1].To != b.Destination {
		t.Errorf("fallback must end at the later ride's destination, got %q", route[len(route)-1].To)
	}
}

// ──────────────────────────────────────────────
// 4. MERGE APPLICATION
// ──────────────────────────────────────────────

func TestAccept_BaseRideAbsorbsPair(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()

	first, err := f.rides.Create(ctx, service.CreateRideRequest{
		GuestName: "Nguyen", RoomNumber: "101", Pickup: "Main Lobby", Destination: "Lagoon Pool",
		GuestCount: 2, Notes: "golf bags",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Advance(time.Minute)
	second, err := f.rides.Create(ctx, service.CreateRideRequest{
		GuestName: "Tran", RoomNumber: "202", Pickup: "Main Lobby", Destination: "Lagoon Pool",
		GuestCount: 1, Notes: "stroller",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Pair order in the request must not matter; the earlier ride wins.
	merged, err := f.merges.Accept(ctx, second.ID, first.ID, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if merged.ID != first.ID {
		t.Errorf("expected earlier ride %s as base, got %s", first.ID, merged.ID)
	}
	if merged.GuestName != "Nguyen + Tran" {
		t.Errorf("expected joined names, got %q", merged.GuestName)
	}
	if merged.RoomNumber != "101, 202" {
		t.Errorf("expected combined rooms, got %q", merged.RoomNumber)
	}
	if merged.Notes != "golf bags | stroller" {
		t.Errorf("expected joined notes, got %q", merged.Notes)
	}
	if !merged.IsMerged {
		t.Error("expected IsMerged to be set")
	}

	active := f.rides.ListActive(ctx)
	if len(active) != 1 || active[0].ID != first.ID {
		t.Fatalf("expected only the base ride active, got %d", len(active))
	}
	stored := f.repo.StoredRide(second.ID)
	if stored == nil || stored.Status != domain.RideStatusCancelled {
		t.Error("expected the absorbed ride recorded as cancelled")
	}
}

func TestAccept_BlankNames_UseDefault(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()

	// Walk-up kiosk requests carry a placeholder name.
	a, _ := f.rides.Create(ctx, service.CreateRideRequest{
		GuestName: " ", Pickup: "Main Lobby", Destination: "Lagoon Pool", GuestCount: 1,
	})
	f.clock.Advance(time.Minute)
	b, _ := f.rides.Create(ctx, service.CreateRideRequest{
		GuestName: " ", Pickup: "Main Lobby", Destination: "Lagoon Pool", GuestCount: 1,
	})

	merged, err := f.merges.Accept(ctx, a.ID, b.ID, "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if merged.GuestName != service.DefaultMergedGuestName {
		t.Errorf("expected %q, got %q", service.DefaultMergedGuestName, merged.GuestName)
	}
}

func TestAccept_WithDriver_AdvancesToArriving(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 2)

	merged, err := f.merges.Accept(ctx, a.ID, b.ID, "driver-9")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if merged.Status != domain.RideStatusArriving {
		t.Errorf("expected ARRIVING, got %s", merged.Status)
	}
	if merged.DriverID != "driver-9" {
		t.Errorf("expected driver-9, got %q", merged.DriverID)
	}
	if merged.ETAMinutes <= 0 {
		t.Errorf("expected a fresh ETA, got %d", merged.ETAMinutes)
	}
}

func TestAccept_PersistenceFailure_LeavesBothUntouched(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 2)

	f.repo.UpdateError = errors.New("db down")
	if _, err := f.merges.Accept(ctx, a.ID, b.ID, ""); err == nil {
		t.Fatal("expected accept to fail")
	}

	active := f.rides.ListActive(ctx)
	if len(active) != 2 {
		t.Fatalf("expected both rides still active, got %d", len(active))
	}
	for _, ride := range active {
		if ride.Status != domain.RideStatusSearching {
			t.Errorf("ride %s: expected SEARCHING, got %s", ride.ID, ride.Status)
		}
		if ride.IsMerged {
			t.Errorf("ride %s: expected no merge flag", ride.ID)
		}
	}
}

func TestAccept_AbsorbedRideWriteFails_NothingPersists(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 2)
	b := f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 2)

	// The write for the absorbed ride dies partway through the pair. A
	// restart reading the database must never see half a merge.
	f.repo.FailUpdateFor = b.ID
	if _, err := f.merges.Accept(ctx, a.ID, b.ID, ""); err == nil {
		t.Fatal("expected accept to fail")
	}

	storedBase := f.repo.StoredRide(a.ID)
	if storedBase == nil {
		t.Fatal("expected the base ride still persisted")
	}
	if storedBase.IsMerged || storedBase.GuestCount != 2 || storedBase.Status != domain.RideStatusSearching {
		t.Errorf("base ride persisted mid-merge: merged=%v count=%d status=%s",
			storedBase.IsMerged, storedBase.GuestCount, storedBase.Status)
	}
	storedOther := f.repo.StoredRide(b.ID)
	if storedOther == nil || storedOther.Status != domain.RideStatusSearching {
		t.Error("expected the absorbed ride still persisted as SEARCHING")
	}

	if active := f.rides.ListActive(ctx); len(active) != 2 {
		t.Fatalf("expected both rides still active, got %d", len(active))
	}
}

func TestAccept_NonCombinablePair_Fails(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()
	a := f.createRide(t, "A", "Main Lobby", "Lagoon Pool", 4)
	b := f.createRide(t, "B", "Main Lobby", "Lagoon Pool", 4)

	if _, err := f.merges.Accept(ctx, a.ID, b.ID, ""); !errors.Is(err, service.ErrRidesNotCombinable) {
		t.Fatalf("expected ErrRidesNotCombinable, got: %v", err)
	}
}

func TestPairKey_OrderIndependent(t *testing.T) {
	t.Parallel()

	if service.PairKey("x", "y") != service.PairKey("y", "x") {
		t.Error("pair key must not depend on argument order")
	}
}
