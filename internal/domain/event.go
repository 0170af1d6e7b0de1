package domain

import "time"

// RideEventType identifies a discrete ride state change published to
// subscribers, so clients observe transitions instead of re-fetching
// and diffing full ride state.
type RideEventType string

const (
	RideEventAssigned  RideEventType = "assigned"
	RideEventArriving  RideEventType = "arriving"
	RideEventPickedUp  RideEventType = "picked_up"
	RideEventCompleted RideEventType = "completed"
	RideEventCancelled RideEventType = "cancelled"
	RideEventMerged    RideEventType = "merged"
)

// RideEvent is the payload delivered on the event stream.
type RideEvent struct {
	Type       RideEventType `json:"type"`
	RideID     string        `json:"ride_id"`
	Status     RideStatus    `json:"status"`
	DriverID   string        `json:"driver_id,omitempty"`
	ETAMinutes int           `json:"eta_minutes,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
