package service

import "errors"

var (
	// ErrInvalidGuestName is returned when the guest name is empty.
	ErrInvalidGuestName = errors.New("invalid guest name")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrMissingPickup is returned when the pickup reference is empty.
	ErrMissingPickup = errors.New("pickup location is required")

	// ErrMissingDestination is returned when the destination reference is empty.
	ErrMissingDestination = errors.New("destination location is required")

	// ErrSamePickupDestination is returned when pickup and destination
	// reference the same location.
	ErrSamePickupDestination = errors.New("pickup and destination must differ")

	// ErrRideNotSearching is returned when assigning a ride that is not
	// waiting for a driver.
	ErrRideNotSearching = errors.New("ride is not searching for a driver")

	// ErrInvalidTransition is returned for any status change the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid ride status transition")

	// ErrRideNotCancellable is returned when cancelling an ON_TRIP or
	// COMPLETED ride; picked-up guests cannot self-cancel.
	ErrRideNotCancellable = errors.New("ride can no longer be cancelled")

	// ErrCancelTooEarly is returned when an assigned ride is cancelled
	// inside the driver-protection grace window.
	ErrCancelTooEarly = errors.New("please wait 5 minutes before cancelling an assigned ride")

	// ErrRideBusy is returned when another dispatcher console holds the
	// ride's lock.
	ErrRideBusy = errors.New("ride is being updated by another console")

	// ErrRidesNotCombinable is returned when the merge feasibility
	// predicate fails for a pair.
	ErrRidesNotCombinable = errors.New("rides cannot be combined")

	// ErrMergeInProgress is returned when another merge holds the lock.
	ErrMergeInProgress = errors.New("another merge is in progress")

	// ErrLocationNotFound is returned when a location reference cannot
	// be resolved against the directory.
	ErrLocationNotFound = errors.New("location not found")

	// ErrDirectoryUnavailable is returned when the location directory
	// cannot be listed.
	ErrDirectoryUnavailable = errors.New("location directory unavailable")
)
