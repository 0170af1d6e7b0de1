// Package observability exposes the service's prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "rides_created_total",
		Help:      "Ride requests accepted into the active set.",
	})

	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "rides_completed_total",
		Help:      "Rides that reached COMPLETED.",
	})

	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "rides_cancelled_total",
		Help:      "Rides cancelled by a guest, driver, or operator.",
	})

	ActiveRides = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "buggy",
		Name:      "rides_active",
		Help:      "Rides currently in the active set.",
	})

	ETARefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "eta_refreshes_total",
		Help:      "Background ETA recomputations that changed a ride.",
	})

	MergesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "merges_accepted_total",
		Help:      "Merge suggestions accepted by a driver.",
	})

	MergesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "merges_rejected_total",
		Help:      "Merge suggestions dismissed by a driver.",
	})

	SmartMatchQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "buggy",
		Name:      "smart_match_queries_total",
		Help:      "Free-text location match requests served.",
	})
)
