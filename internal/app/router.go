package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"buggy/internal/handler"
	"buggy/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler     *handler.RideHandler
	MergeHandler    *handler.MergeHandler
	LocationHandler *handler.LocationHandler
	DriverHandler   *handler.DriverHandler
	EventsHandler   *handler.EventsHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check and metrics.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Ride lifecycle routes.
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.ListRides)

			// Merge routes sit above /:id so gin does not treat
			// "merge" as a ride id.
			merge := rides.Group("/merge")
			{
				merge.GET("/suggestion", deps.MergeHandler.GetSuggestion)
				merge.POST("/accept", deps.MergeHandler.AcceptMerge)
				merge.POST("/reject", deps.MergeHandler.RejectMerge)
			}

			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/assign", deps.RideHandler.AssignRide)
			rides.POST("/:id/arriving", deps.RideHandler.MarkArriving)
			rides.POST("/:id/pickup", deps.RideHandler.MarkPickedUp)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.GET("/:id/cancel-state", deps.RideHandler.GetCancelState)
		}

		// Location directory routes.
		locations := v1.Group("/locations")
		{
			locations.GET("", deps.LocationHandler.ListLocations)
			locations.POST("/refresh", deps.LocationHandler.RefreshDirectory)
			locations.POST("/resolve", deps.LocationHandler.ResolveLocation)
			locations.POST("/match", deps.LocationHandler.MatchLocation)
		}

		// Driver telemetry routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.GET("/:id/location", deps.DriverHandler.GetLocation)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}

		// Event stream.
		v1.GET("/events", deps.EventsHandler.Subscribe)
	}

	return router
}
