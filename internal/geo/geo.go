// Package geo contains pure geographic math used across the dispatch
// core. Straight-line distance is a deliberate proxy: the resort is
// small enough that road-network routing buys nothing.
package geo

import (
	"math"

	"buggy/internal/domain"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between
// two points in decimal degrees.
func HaversineKm(a, b domain.Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	rLat1 := toRadians(a.Lat)
	rLat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// PathKm sums the consecutive leg distances of a waypoint sequence.
func PathKm(points []domain.Coordinates) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	return total
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Bounds is the bounding box of the resort map image.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// MapPercent projects a coordinate onto the map image as percentage
// offsets from the top-left corner. Results are clamped to [0,100] so
// out-of-bounds positions still render at the map edge.
func MapPercent(b Bounds, c domain.Coordinates) (x, y float64) {
	width := b.East - b.West
	height := b.North - b.South
	if width == 0 || height == 0 {
		return 0, 0
	}
	x = (c.Lng - b.West) / width * 100
	y = (b.North - c.Lat) / height * 100
	return clampPercent(x), clampPercent(y)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
