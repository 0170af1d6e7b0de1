package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buggy/internal/domain"
	"buggy/internal/service"
)

// MergeHandler handles HTTP requests for ride merging.
type MergeHandler struct {
	merges *service.MergeService
}

// NewMergeHandler creates a new MergeHandler.
func NewMergeHandler(merges *service.MergeService) *MergeHandler {
	return &MergeHandler{merges: merges}
}

// MergeSuggestionResponse is the HTTP representation of a merge suggestion.
type MergeSuggestionResponse struct {
	RideA           RideResponse          `json:"ride_a"`
	RideB           RideResponse          `json:"ride_b"`
	Route           []domain.RouteSegment `json:"route"`
	TotalDistanceKm float64               `json:"total_distance_km"`
	IsChainTrip     bool                  `json:"is_chain_trip"`
}

// MergePairRequest identifies a ride pair for accept/reject.
type MergePairRequest struct {
	RideA    string `json:"ride_a"`
	RideB    string `json:"ride_b"`
	DriverID string `json:"driver_id,omitempty"`
}

// GetSuggestion handles GET /v1/rides/merge/suggestion
func (h *MergeHandler) GetSuggestion(c *gin.Context) {
	suggestion, err := h.merges.Suggest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if suggestion == nil {
		c.Status(http.StatusNoContent)
		return
	}

	respondJSON(c, http.StatusOK, MergeSuggestionResponse{
		RideA:           toRideResponse(suggestion.RideA),
		RideB:           toRideResponse(suggestion.RideB),
		Route:           suggestion.Route,
		TotalDistanceKm: suggestion.TotalDistanceKm,
		IsChainTrip:     suggestion.IsChainTrip,
	})
}

// AcceptMerge handles POST /v1/rides/merge/accept
func (h *MergeHandler) AcceptMerge(c *gin.Context) {
	var req MergePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	merged, err := h.merges.Accept(c.Request.Context(), req.RideA, req.RideB, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(merged))
}

// RejectMerge handles POST /v1/rides/merge/reject
func (h *MergeHandler) RejectMerge(c *gin.Context) {
	var req MergePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.merges.Reject(c.Request.Context(), req.RideA, req.RideB); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
