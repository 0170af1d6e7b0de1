package domain

// LocationCategory classifies a resort location.
type LocationCategory string

const (
	CategoryVilla      LocationCategory = "VILLA"
	CategoryFacility   LocationCategory = "FACILITY"
	CategoryRestaurant LocationCategory = "RESTAURANT"
	CategoryOther      LocationCategory = "OTHER"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is immutable reference data owned by the location directory.
// The dispatch core treats the directory as a read-only lookup table
// refreshed per request.
type Location struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Lat      float64          `json:"lat"`
	Lng      float64          `json:"lng"`
	Category LocationCategory `json:"category"`
}

// Coords returns the location's position.
func (l Location) Coords() Coordinates {
	return Coordinates{Lat: l.Lat, Lng: l.Lng}
}
