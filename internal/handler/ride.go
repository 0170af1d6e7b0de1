package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"buggy/internal/domain"
	"buggy/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rides *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rides *service.RideService) *RideHandler {
	return &RideHandler{rides: rides}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	GuestName   string `json:"guest_name"`
	RoomNumber  string `json:"room_number,omitempty"`
	Pickup      string `json:"pickup"`
	Destination string `json:"destination"`
	GuestCount  int    `json:"guest_count"`
	Notes       string `json:"notes,omitempty"`
}

// AssignRideRequest is the HTTP request body for assigning a driver.
type AssignRideRequest struct {
	DriverID   string `json:"driver_id"`
	ETAMinutes int    `json:"eta_minutes,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	CancelledBy string `json:"cancelled_by,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID          string                `json:"id"`
	GuestName   string                `json:"guest_name"`
	RoomNumber  string                `json:"room_number,omitempty"`
	Pickup      string                `json:"pickup"`
	Destination string                `json:"destination"`
	GuestCount  int                   `json:"guest_count"`
	Notes       string                `json:"notes,omitempty"`
	Status      string                `json:"status"`
	DriverID    string                `json:"driver_id,omitempty"`
	ETAMinutes  int                   `json:"eta_minutes,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	ConfirmedAt *time.Time            `json:"confirmed_at,omitempty"`
	PickedUpAt  *time.Time            `json:"picked_up_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	IsMerged    bool                  `json:"is_merged"`
	IsChainTrip bool                  `json:"is_chain_trip,omitempty"`
	Segments    []domain.RouteSegment `json:"segments,omitempty"`
}

func toRideResponse(ride *domain.RideRequest) RideResponse {
	resp := RideResponse{
		ID:          ride.ID,
		GuestName:   ride.GuestName,
		RoomNumber:  ride.RoomNumber,
		Pickup:      ride.Pickup,
		Destination: ride.Destination,
		GuestCount:  ride.GuestCount,
		Notes:       ride.Notes,
		Status:      string(ride.Status),
		DriverID:    ride.DriverID,
		ETAMinutes:  ride.ETAMinutes,
		CreatedAt:   ride.CreatedAt,
		IsMerged:    ride.IsMerged,
		IsChainTrip: ride.IsChainTrip,
		Segments:    ride.Segments,
	}
	if !ride.ConfirmedAt.IsZero() {
		t := ride.ConfirmedAt
		resp.ConfirmedAt = &t
	}
	if !ride.PickedUpAt.IsZero() {
		t := ride.PickedUpAt
		resp.PickedUpAt = &t
	}
	if !ride.CompletedAt.IsZero() {
		t := ride.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rides.Create(c.Request.Context(), service.CreateRideRequest{
		GuestName:   req.GuestName,
		RoomNumber:  req.RoomNumber,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		GuestCount:  req.GuestCount,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rides.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListRides handles GET /v1/rides
func (h *RideHandler) ListRides(c *gin.Context) {
	rides := h.rides.ListActive(c.Request.Context())
	out := make([]RideResponse, 0, len(rides))
	for _, ride := range rides {
		out = append(out, toRideResponse(ride))
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": out})
}

// AssignRide handles POST /v1/rides/:id/assign
func (h *RideHandler) AssignRide(c *gin.Context) {
	var req AssignRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rides.Assign(c.Request.Context(), c.Param("id"), req.DriverID, req.ETAMinutes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// MarkArriving handles POST /v1/rides/:id/arriving
func (h *RideHandler) MarkArriving(c *gin.Context) {
	ride, err := h.rides.MarkArriving(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// MarkPickedUp handles POST /v1/rides/:id/pickup
func (h *RideHandler) MarkPickedUp(c *gin.Context) {
	ride, err := h.rides.MarkPickedUp(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	ride, err := h.rides.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	ride, err := h.rides.Cancel(c.Request.Context(), c.Param("id"), req.CancelledBy)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// GetCancelState handles GET /v1/rides/:id/cancel-state
func (h *RideHandler) GetCancelState(c *gin.Context) {
	state, err := h.rides.CancelState(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, state)
}
