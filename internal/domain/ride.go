package domain

import "time"

// RideStatus represents the current status of a buggy ride request.
type RideStatus string

const (
	RideStatusSearching RideStatus = "SEARCHING"
	RideStatusAssigned  RideStatus = "ASSIGNED"
	RideStatusArriving  RideStatus = "ARRIVING"
	RideStatusOnTrip    RideStatus = "ON_TRIP"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible from s.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// MinGuestCount and MaxGuestCount bound a single buggy's passenger load.
const (
	MinGuestCount = 1
	MaxGuestCount = 7
)

// ClampGuestCount forces a requested guest count into the vehicle bounds.
func ClampGuestCount(n int) int {
	if n < MinGuestCount {
		return MinGuestCount
	}
	if n > MaxGuestCount {
		return MaxGuestCount
	}
	return n
}

// ManifestEntry identifies one guest group aboard a route leg.
type ManifestEntry struct {
	Name       string `json:"name"`
	RoomNumber string `json:"room_number"`
	Count      int    `json:"count"`
}

// RouteSegment is one leg of a (possibly merged) trip, carrying the
// guest groups that are onboard between From and To.
type RouteSegment struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	FromCoords *Coordinates    `json:"from_coords,omitempty"`
	ToCoords   *Coordinates    `json:"to_coords,omitempty"`
	Manifest   []ManifestEntry `json:"manifest"`
}

// RideRequest is a guest's request for a buggy ride between two resort
// locations. Status and timestamps are mutated exclusively by the ride
// service; route, segments and guest aggregation by the merge engine.
type RideRequest struct {
	ID          string
	GuestName   string
	RoomNumber  string
	Pickup      string // location reference as entered by the guest
	Destination string
	GuestCount  int
	Notes       string
	Status      RideStatus
	DriverID    string
	ETAMinutes  int
	CreatedAt   time.Time
	ConfirmedAt time.Time // set on assignment
	PickedUpAt  time.Time // set exactly once, on first ON_TRIP
	CompletedAt time.Time
	IsMerged    bool
	IsChainTrip bool
	Segments    []RouteSegment

	// Version increments on every committed mutation. Background
	// refreshers compare it before writing so a stale ETA never
	// overwrites a newer state.
	Version int64
}

// Clone returns a deep copy so callers can never reach the service's
// internal state through a returned ride.
func (r *RideRequest) Clone() *RideRequest {
	cp := *r
	if r.Segments != nil {
		cp.Segments = make([]RouteSegment, len(r.Segments))
		for i, seg := range r.Segments {
			cp.Segments[i] = seg.clone()
		}
	}
	return &cp
}

func (s RouteSegment) clone() RouteSegment {
	cp := s
	if s.FromCoords != nil {
		c := *s.FromCoords
		cp.FromCoords = &c
	}
	if s.ToCoords != nil {
		c := *s.ToCoords
		cp.ToCoords = &c
	}
	if s.Manifest != nil {
		cp.Manifest = append([]ManifestEntry(nil), s.Manifest...)
	}
	return cp
}

// MergeSuggestion pairs two SEARCHING rides that can share a buggy. It
// is derived, never persisted, and stays valid only while both rides
// remain SEARCHING and the pair has not been dismissed by a driver.
type MergeSuggestion struct {
	RideA           *RideRequest
	RideB           *RideRequest
	Route           []RouteSegment
	TotalDistanceKm float64
	IsChainTrip     bool
}
