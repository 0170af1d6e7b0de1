package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"buggy/internal/geo"
	"buggy/internal/redis"
	"buggy/internal/service"
)

// DriverHandler handles HTTP requests for driver telemetry.
type DriverHandler struct {
	telemetry redis.TelemetryStoreInterface
	mapBounds geo.Bounds
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(telemetry redis.TelemetryStoreInterface, mapBounds geo.Bounds) *DriverHandler {
	return &DriverHandler{telemetry: telemetry, mapBounds: mapBounds}
}

// UpdateLocationRequest is the HTTP request body for a telemetry ping.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DriverLocationResponse carries a driver's last known position. MapX
// and MapY are percentage offsets from the top-left corner of the
// resort map image.
type DriverLocationResponse struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	MapX      float64 `json:"map_x"`
	MapY      float64 `json:"map_y"`
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID := c.Param("id")
	if driverID == "" {
		respondError(c, service.ErrInvalidDriverID)
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "coordinates out of range"})
		return
	}

	if err := h.telemetry.UpdateLocation(c.Request.Context(), driverID, req.Latitude, req.Longitude); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLocation handles GET /v1/drivers/:id/location
func (h *DriverHandler) GetLocation(c *gin.Context) {
	driverID := c.Param("id")
	if driverID == "" {
		respondError(c, service.ErrInvalidDriverID)
		return
	}

	coords, err := h.telemetry.GetCoordinates(c.Request.Context(), driverID)
	if err != nil {
		if errors.Is(err, redis.ErrNoTelemetry) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	x, y := geo.MapPercent(h.mapBounds, coords)
	respondJSON(c, http.StatusOK, DriverLocationResponse{
		DriverID:  driverID,
		Latitude:  coords.Lat,
		Longitude: coords.Lng,
		MapX:      x,
		MapY:      y,
	})
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	driverID := c.Param("id")
	if driverID == "" {
		respondError(c, service.ErrInvalidDriverID)
		return
	}

	if err := h.telemetry.RemoveLocation(c.Request.Context(), driverID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
