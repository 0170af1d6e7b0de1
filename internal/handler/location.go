package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"buggy/internal/observability"
	"buggy/internal/service"
)

// LocationHandler handles HTTP requests for the location directory.
type LocationHandler struct {
	directory *service.DirectoryService
	resolver  *service.LocationResolver
	matcher   *service.SmartMatchService
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(directory *service.DirectoryService, resolver *service.LocationResolver, matcher *service.SmartMatchService) *LocationHandler {
	return &LocationHandler{
		directory: directory,
		resolver:  resolver,
		matcher:   matcher,
	}
}

// ResolveRequest is the HTTP request body for resolving a reference.
type ResolveRequest struct {
	Reference string `json:"reference"`
}

// ResolveResponse carries the resolved coordinates.
type ResolveResponse struct {
	Reference string  `json:"reference"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MatchRequest is the HTTP request body for a smart match query.
type MatchRequest struct {
	Input               string `json:"input"`
	PreviousPickup      string `json:"previous_pickup,omitempty"`
	PreviousDestination string `json:"previous_destination,omitempty"`
	CurrentStep         string `json:"current_step,omitempty"`
}

// ListLocations handles GET /v1/locations
func (h *LocationHandler) ListLocations(c *gin.Context) {
	locations, err := h.directory.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"locations": locations})
}

// RefreshDirectory handles POST /v1/locations/refresh
func (h *LocationHandler) RefreshDirectory(c *gin.Context) {
	locations, err := h.directory.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"locations": locations})
}

// ResolveLocation handles POST /v1/locations/resolve
func (h *LocationHandler) ResolveLocation(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	directory, err := h.directory.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	coords, ok := h.resolver.Resolve(req.Reference, directory)
	if !ok {
		respondError(c, service.ErrLocationNotFound)
		return
	}

	respondJSON(c, http.StatusOK, ResolveResponse{
		Reference: req.Reference,
		Latitude:  coords.Lat,
		Longitude: coords.Lng,
	})
}

// MatchLocation handles POST /v1/locations/match
func (h *LocationHandler) MatchLocation(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	directory, err := h.directory.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	var mctx *service.MatchContext
	if req.PreviousPickup != "" || req.PreviousDestination != "" || req.CurrentStep != "" {
		mctx = &service.MatchContext{
			PreviousPickup:      req.PreviousPickup,
			PreviousDestination: req.PreviousDestination,
			CurrentStep:         req.CurrentStep,
		}
	}

	result := h.matcher.Match(req.Input, directory, mctx)
	observability.SmartMatchQueries.Inc()
	respondJSON(c, http.StatusOK, result)
}
