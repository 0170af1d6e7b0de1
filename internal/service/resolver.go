package service

import (
	"regexp"
	"strconv"
	"strings"

	"buggy/internal/domain"
)

// gpsPattern matches raw coordinate references like "GPS:10.295,103.938".
var gpsPattern = regexp.MustCompile(`(?i)^\s*GPS:\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)

// roomNumberPattern pulls the numeric part out of references like
// "room 204" or "Room204".
var roomNumberPattern = regexp.MustCompile(`(\d+)`)

// LocationResolver turns a textual location reference into coordinates
// using the location directory. It has no side effects and tolerates an
// empty directory.
type LocationResolver struct {
	data *MatchData
}

// NewLocationResolver creates a resolver backed by the given match data.
func NewLocationResolver(data *MatchData) *LocationResolver {
	if data == nil {
		data = DefaultMatchData()
	}
	return &LocationResolver{data: data}
}

// Resolve resolves a reference in strict order: raw GPS coordinates,
// exact name match, bidirectional substring match, then room-number
// lookup. The second return value is false when nothing matches.
func (r *LocationResolver) Resolve(reference string, directory []domain.Location) (domain.Coordinates, bool) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return domain.Coordinates{}, false
	}

	if coords, ok := parseGPS(ref); ok {
		return coords, true
	}

	lowered := strings.ToLower(ref)

	for _, loc := range directory {
		if strings.ToLower(strings.TrimSpace(loc.Name)) == lowered {
			return loc.Coords(), true
		}
	}

	for _, loc := range directory {
		name := strings.ToLower(strings.TrimSpace(loc.Name))
		if name == "" {
			continue
		}
		if strings.Contains(lowered, name) || strings.Contains(name, lowered) {
			return loc.Coords(), true
		}
	}

	if coords, ok := r.resolveRoom(lowered, directory); ok {
		return coords, true
	}

	return domain.Coordinates{}, false
}

// resolveRoom handles "room NNN" style references through the explicit
// room-to-villa mapping. A room with no mapping stays unresolved; the
// resolver never guesses a villa.
func (r *LocationResolver) resolveRoom(lowered string, directory []domain.Location) (domain.Coordinates, bool) {
	if !strings.Contains(lowered, "room") && !strings.Contains(lowered, "villa") && !strings.Contains(lowered, "phòng") {
		return domain.Coordinates{}, false
	}

	match := roomNumberPattern.FindString(lowered)
	if match == "" {
		return domain.Coordinates{}, false
	}

	target, ok := r.data.Rooms[match]
	if !ok {
		return domain.Coordinates{}, false
	}

	targetLower := strings.ToLower(target)
	for _, loc := range directory {
		if strings.EqualFold(loc.ID, target) || strings.ToLower(strings.TrimSpace(loc.Name)) == targetLower {
			return loc.Coords(), true
		}
	}

	return domain.Coordinates{}, false
}

func parseGPS(ref string) (domain.Coordinates, bool) {
	m := gpsPattern.FindStringSubmatch(ref)
	if m == nil {
		return domain.Coordinates{}, false
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return domain.Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Coordinates{}, false
	}

	return domain.Coordinates{Lat: lat, Lng: lng}, true
}
