package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"buggy/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDriverAssigned NotificationType = "DRIVER_ASSIGNED"
	NotificationDriverArriving NotificationType = "DRIVER_ARRIVING"
	NotificationPickedUp       NotificationType = "PICKED_UP"
	NotificationTripCompleted  NotificationType = "TRIP_COMPLETED"
	NotificationRideCancelled  NotificationType = "RIDE_CANCELLED"
	NotificationRideMerged     NotificationType = "RIDE_MERGED"
)

// NotificationSeverity indicates how prominently to surface a message.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeverityWarning NotificationSeverity = "warning"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type      NotificationType
	Recipient string // guest room identifier or driver ID
	Title     string
	Message   string
	Severity  NotificationSeverity
	Data      map[string]interface{}
	CreatedAt time.Time
}

// NotificationSender delivers a notification over one channel.
// Delivery is fire-and-forget: the dispatch core never depends on
// delivery success.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// NotificationService fans guest and driver notifications out to the
// registered senders.
type NotificationService struct {
	senders []NotificationSender
	logger  *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *slog.Logger, senders ...NotificationSender) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{senders: senders, logger: logger}
}

// NotifyDriverAssigned tells the guest a buggy is on the way.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, ride *domain.RideRequest) {
	s.send(ctx, Notification{
		Type:      NotificationDriverAssigned,
		Recipient: ride.RoomNumber,
		Title:     "Buggy Assigned",
		Message:   fmt.Sprintf("Your buggy is on the way. Estimated arrival: %d minutes.", ride.ETAMinutes),
		Severity:  SeverityInfo,
		Data: map[string]interface{}{
			"ride_id":     ride.ID,
			"driver_id":   ride.DriverID,
			"eta_minutes": ride.ETAMinutes,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyDriverArriving tells the guest the buggy is close to pickup.
func (s *NotificationService) NotifyDriverArriving(ctx context.Context, ride *domain.RideRequest) {
	s.send(ctx, Notification{
		Type:      NotificationDriverArriving,
		Recipient: ride.RoomNumber,
		Title:     "Buggy Arriving",
		Message:   fmt.Sprintf("Your buggy is arriving at %s. Please be ready.", ride.Pickup),
		Severity:  SeverityInfo,
		Data: map[string]interface{}{
			"ride_id": ride.ID,
			"pickup":  ride.Pickup,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPickedUp confirms boarding.
func (s *NotificationService) NotifyPickedUp(ctx context.Context, ride *domain.RideRequest) {
	s.send(ctx, Notification{
		Type:      NotificationPickedUp,
		Recipient: ride.RoomNumber,
		Title:     "Trip Started",
		Message:   fmt.Sprintf("Enjoy the ride to %s.", ride.Destination),
		Severity:  SeverityInfo,
		Data: map[string]interface{}{
			"ride_id":     ride.ID,
			"destination": ride.Destination,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyTripCompleted tells the guest the trip has ended.
func (s *NotificationService) NotifyTripCompleted(ctx context.Context, ride *domain.RideRequest) {
	s.send(ctx, Notification{
		Type:      NotificationTripCompleted,
		Recipient: ride.RoomNumber,
		Title:     "Trip Completed",
		Message:   fmt.Sprintf("You have arrived at %s. Thank you for riding with us.", ride.Destination),
		Severity:  SeverityInfo,
		Data: map[string]interface{}{
			"ride_id": ride.ID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyRideCancelled tells the affected party about a cancellation.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.RideRequest, actor string) {
	recipient := ride.RoomNumber
	message := "Your buggy request has been cancelled."
	if actor == "guest" && ride.DriverID != "" {
		recipient = ride.DriverID
		message = fmt.Sprintf("The guest cancelled the pickup at %s.", ride.Pickup)
	}

	s.send(ctx, Notification{
		Type:      NotificationRideCancelled,
		Recipient: recipient,
		Title:     "Ride Cancelled",
		Message:   message,
		Severity:  SeverityWarning,
		Data: map[string]interface{}{
			"ride_id":      ride.ID,
			"cancelled_by": actor,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyRideMerged tells both guest groups their rides now share a buggy.
func (s *NotificationService) NotifyRideMerged(ctx context.Context, ride *domain.RideRequest, otherRoom string) {
	for _, recipient := range []string{ride.RoomNumber, otherRoom} {
		if recipient == "" {
			continue
		}
		s.send(ctx, Notification{
			Type:      NotificationRideMerged,
			Recipient: recipient,
			Title:     "Shared Ride",
			Message:   "Your ride has been combined with another request heading the same way.",
			Severity:  SeverityInfo,
			Data: map[string]interface{}{
				"ride_id": ride.ID,
			},
			CreatedAt: time.Now(),
		})
	}
}

// send fans out to all senders; failures are logged and dropped.
func (s *NotificationService) send(ctx context.Context, n Notification) {
	for _, sender := range s.senders {
		if err := sender.Send(ctx, n); err != nil {
			s.logger.Warn("notification delivery failed",
				"type", string(n.Type), "recipient", n.Recipient, "error", err)
		}
	}
}

// LogSender writes notifications to the structured log. It doubles as
// the delivery channel in development and as an audit trail in
// production.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements NotificationSender.
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		"type", string(n.Type),
		"recipient", n.Recipient,
		"title", n.Title,
		"message", n.Message,
		"severity", string(n.Severity),
	)
	return nil
}
