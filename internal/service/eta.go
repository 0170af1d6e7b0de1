package service

import (
	"math"

	"buggy/internal/config"
	"buggy/internal/domain"
	"buggy/internal/geo"
)

// ETAEstimator converts straight-line distances into clamped
// travel-time estimates. Buggies move slowly on fixed resort paths, so
// a constant average speed plus a boarding buffer tracks reality well.
type ETAEstimator struct {
	speedKmh  float64
	bufferMin int
	minMin    int
	maxMin    int
}

// NewETAEstimator creates an estimator from dispatch config.
func NewETAEstimator(cfg config.DispatchConfig) *ETAEstimator {
	speed := cfg.AvgSpeedKmh
	if speed <= 0 {
		speed = 12.0
	}
	return &ETAEstimator{
		speedKmh:  speed,
		bufferMin: cfg.BufferMinutes,
		minMin:    cfg.MinETAMinutes,
		maxMin:    cfg.MaxETAMinutes,
	}
}

// EstimateMinutes converts a distance into whole minutes, adds the
// boarding buffer, and clamps to the configured range.
func (e *ETAEstimator) EstimateMinutes(distanceKm float64) int {
	if distanceKm < 0 {
		distanceKm = 0
	}

	minutes := int(math.Round(distanceKm/e.speedKmh*60)) + e.bufferMin
	if minutes < e.minMin {
		minutes = e.minMin
	}
	if minutes > e.maxMin {
		minutes = e.maxMin
	}
	return minutes
}

// EstimateBetween estimates travel time between two coordinates.
func (e *ETAEstimator) EstimateBetween(from, to domain.Coordinates) int {
	return e.EstimateMinutes(geo.HaversineKm(from, to))
}
