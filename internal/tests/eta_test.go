package tests

import (
	"context"
	"sync/atomic"
	"testing"

	"buggy/internal/config"
	"buggy/internal/domain"
	"buggy/internal/service"
)

// ──────────────────────────────────────────────
// ETA ESTIMATION
// ──────────────────────────────────────────────

func TestETAEstimator_Clamping(t *testing.T) {
	t.Parallel()

	estimator := service.NewETAEstimator(config.DispatchConfig{
		AvgSpeedKmh:   12,
		BufferMinutes: 2,
		MinETAMinutes: 3,
		MaxETAMinutes: 20,
	})

	testCases := []struct {
		name       string
		distanceKm float64
		want       int
	}{
		{"zero distance clamps to minimum", 0, 3},
		{"short hop clamps to minimum", 0.1, 3},
		{"mid-resort trip", 1.0, 7},  // 5 min travel + 2 buffer
		{"long trip", 2.4, 14},       // 12 min travel + 2 buffer
		{"far end clamps to maximum", 10, 20},
		{"negative distance treated as zero", -5, 3},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := estimator.EstimateMinutes(tc.distanceKm); got != tc.want {
				t.Errorf("EstimateMinutes(%v) = %d, want %d", tc.distanceKm, got, tc.want)
			}
		})
	}
}

func TestETAEstimator_ZeroSpeedConfig_UsesDefault(t *testing.T) {
	t.Parallel()

	estimator := service.NewETAEstimator(config.DispatchConfig{
		MinETAMinutes: 1,
		MaxETAMinutes: 60,
	})

	// 12 km at the 12 km/h default is an hour.
	if got := estimator.EstimateMinutes(12); got != 60 {
		t.Errorf("expected 60 minutes, got %d", got)
	}
}

// ──────────────────────────────────────────────
// ASSIGNMENT ETA FROM TELEMETRY
// ──────────────────────────────────────────────

func TestAssign_NoETAGiven_EstimatesFromDriverPosition(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()

	ride := f.createRide(t, "A", "Main Lobby", "Beach Club", 2)

	// Park the driver at the Garden Restaurant, a known distance from
	// the Main Lobby pickup.
	restaurant := resortDirectory()[3]
	if err := f.telemetry.UpdateLocation(ctx, "driver-1", restaurant.Lat, restaurant.Lng); err != nil {
		t.Fatalf("telemetry: %v", err)
	}

	assigned, err := f.rides.Assign(ctx, ride.ID, "driver-1", 0)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.ETAMinutes < 3 || assigned.ETAMinutes > 20 {
		t.Errorf("estimated ETA must stay within the clamp range, got %d", assigned.ETAMinutes)
	}
}

// ──────────────────────────────────────────────
// BACKGROUND ETA REFRESH
// ──────────────────────────────────────────────

func TestRefreshETAs_DriverMoved_WritesNewEstimate(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()

	ride := f.createRide(t, "A", "Main Lobby", "Beach Club", 2)
	if _, err := f.rides.Assign(ctx, ride.ID, "driver-1", 15); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// The driver reaches the pickup, so the estimate drops to the floor.
	lobby := resortDirectory()[0]
	if err := f.telemetry.UpdateLocation(ctx, "driver-1", lobby.Lat, lobby.Lng); err != nil {
		t.Fatalf("telemetry: %v", err)
	}

	f.rides.RefreshETAs(ctx)

	refreshed, err := f.rides.Get(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if refreshed.ETAMinutes != 3 {
		t.Errorf("expected refreshed ETA 3, got %d", refreshed.ETAMinutes)
	}
	if stored := f.repo.StoredRide(ride.ID); stored == nil || stored.ETAMinutes != 3 {
		t.Error("expected the refreshed ETA persisted")
	}
}

func TestRefreshETAs_UnchangedEstimate_NoWrite(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()

	ride := f.createRide(t, "A", "Main Lobby", "Beach Club", 2)
	restaurant := resortDirectory()[3]
	if err := f.telemetry.UpdateLocation(ctx, "driver-1", restaurant.Lat, restaurant.Lng); err != nil {
		t.Fatalf("telemetry: %v", err)
	}

	// Assigning with no ETA estimates from the same position the
	// refresher will see.
	if _, err := f.rides.Assign(ctx, ride.ID, "driver-1", 0); err != nil {
		t.Fatalf("assign: %v", err)
	}

	before := atomic.LoadInt32(&f.repo.UpdateCallCount)
	f.rides.RefreshETAs(ctx)

	if after := atomic.LoadInt32(&f.repo.UpdateCallCount); after != before {
		t.Errorf("an unchanged ETA must not be rewritten, saw %d extra writes", after-before)
	}
}

func TestRefreshETAs_RideAdvancedMidPass_StaleEstimateDropped(t *testing.T) {
	t.Parallel()

	f := newMergeFixture()
	ctx := context.Background()

	ride := f.createRide(t, "A", "Main Lobby", "Beach Club", 2)
	villa := resortDirectory()[4]
	if err := f.telemetry.UpdateLocation(ctx, "driver-1", villa.Lat, villa.Lng); err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	if _, err := f.rides.Assign(ctx, ride.ID, "driver-1", 15); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Move the driver so the pass computes a different estimate, then
	// advance the ride between the snapshot and the write.
	lobby := resortDirectory()[0]
	if err := f.telemetry.UpdateLocation(ctx, "driver-1", lobby.Lat, lobby.Lng); err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	f.telemetry.GetHook = func(string) {
		f.telemetry.GetHook = nil
		if _, err := f.rides.MarkArriving(ctx, ride.ID); err != nil {
			t.Errorf("arriving: %v", err)
		}
	}

	f.rides.RefreshETAs(ctx)

	current, err := f.rides.Get(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != domain.RideStatusArriving {
		t.Fatalf("expected ARRIVING, got %s", current.Status)
	}
	if current.ETAMinutes != 15 {
		t.Errorf("a stale estimate must not overwrite the newer state, got ETA %d", current.ETAMinutes)
	}
}
