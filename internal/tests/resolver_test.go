package tests

import (
	"math"
	"testing"

	"buggy/internal/service"
)

// ──────────────────────────────────────────────
// LOCATION RESOLUTION
// ──────────────────────────────────────────────

func resolverData() *service.MatchData {
	data := service.DefaultMatchData()
	data.Rooms = map[string]string{
		"204": "Sunset Villa",
		"305": "L5",
	}
	return data
}

func TestResolve_RawGPSReference(t *testing.T) {
	t.Parallel()

	resolver := service.NewLocationResolver(resolverData())

	testCases := []struct {
		name    string
		ref     string
		wantLat float64
		wantLng float64
		wantOK  bool
	}{
		{"plain", "GPS:10.295,103.938", 10.295, 103.938, true},
		{"spaced and lowercase", "  gps: 10.295 , 103.938 ", 10.295, 103.938, true},
		{"negative coordinates", "GPS:-33.8688,151.2093", -33.8688, 151.2093, true},
		{"latitude out of range", "GPS:95.0,103.938", 0, 0, false},
		{"longitude out of range", "GPS:10.295,190.0", 0, 0, false},
		{"not a GPS string", "gps station", 0, 0, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			coords, ok := resolver.Resolve(tc.ref, nil)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if !ok {
				return
			}
			if math.Abs(coords.Lat-tc.wantLat) > 1e-9 || math.Abs(coords.Lng-tc.wantLng) > 1e-9 {
				t.Errorf("expected (%v, %v), got (%v, %v)", tc.wantLat, tc.wantLng, coords.Lat, coords.Lng)
			}
		})
	}
}

func TestResolve_ExactAndSubstringNames(t *testing.T) {
	t.Parallel()

	resolver := service.NewLocationResolver(resolverData())
	directory := resortDirectory()

	coords, ok := resolver.Resolve("main lobby", directory)
	if !ok || coords.Lat != 10.3000 {
		t.Error("expected exact case-insensitive name match")
	}

	// Guest text wrapping a known name still resolves.
	coords, ok = resolver.Resolve("meet at the Beach Club please", directory)
	if !ok || coords.Lat != 10.3120 {
		t.Error("expected substring match inside longer guest text")
	}

	// A prefix of a known name resolves the other direction.
	if _, ok := resolver.Resolve("Lagoon", directory); !ok {
		t.Error("expected partial name to match")
	}
}

func TestResolve_RoomNumber_ExplicitMappingOnly(t *testing.T) {
	t.Parallel()

	resolver := service.NewLocationResolver(resolverData())
	directory := resortDirectory()

	// Mapped room resolves to its villa by name.
	coords, ok := resolver.Resolve("room 204", directory)
	if !ok || coords.Lat != 10.2900 {
		t.Error("expected mapped room to resolve to Sunset Villa")
	}

	// Mapping by location ID works too.
	coords, ok = resolver.Resolve("Villa 305", directory)
	if !ok || coords.Lat != 10.2900 {
		t.Error("expected ID-mapped room to resolve")
	}

	// An unmapped room must not guess a villa.
	if _, ok := resolver.Resolve("room 999", directory); ok {
		t.Error("unmapped room numbers must stay unresolved")
	}
}

func TestResolve_UnknownReference_Fails(t *testing.T) {
	t.Parallel()

	resolver := service.NewLocationResolver(resolverData())

	if _, ok := resolver.Resolve("the moon", resortDirectory()); ok {
		t.Error("expected unknown reference to stay unresolved")
	}
	if _, ok := resolver.Resolve("", resortDirectory()); ok {
		t.Error("expected empty reference to stay unresolved")
	}
	if _, ok := resolver.Resolve("Main Lobby", nil); ok {
		t.Error("expected empty directory to resolve nothing")
	}
}
