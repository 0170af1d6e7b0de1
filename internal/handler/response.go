package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"buggy/internal/repository"
	"buggy/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrLocationNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidGuestName),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrMissingPickup),
		errors.Is(err, service.ErrMissingDestination),
		errors.Is(err, service.ErrSamePickupDestination):
		return http.StatusBadRequest

	// Conflict errors - state machine and policy violations
	case errors.Is(err, service.ErrRideNotSearching),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRideNotCancellable),
		errors.Is(err, service.ErrCancelTooEarly),
		errors.Is(err, service.ErrRideBusy),
		errors.Is(err, service.ErrRidesNotCombinable),
		errors.Is(err, service.ErrMergeInProgress):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, service.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
