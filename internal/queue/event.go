// Package queue defines the booking events exchanged over RabbitMQ and the
// long-lived publisher and background consumer that move them.
package queue

import (
	"time"

	"github.com/iliyamo/room-booking/internal/model"
)

// Routing keys on the topic exchange.
const (
	KeyBookingCreated   = "booking.created"
	KeyBookingCancelled = "booking.cancelled"
	KeyBookingExpired   = "booking.expired"
	KeyRoomCreated      = "room.created"
	KeyRoomUpdated      = "room.updated"
	KeyRoomDeleted      = "room.deleted"
	KeyUserDeleted      = "user.deleted"
)

// BookingEvent is published after a booking procedure commits.  It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type BookingEvent struct {
	Event         string              `json:"event"`
	BookingID     string              `json:"booking_id"`
	RoomID        string              `json:"room_id"`
	UserID        string              `json:"user_id"`
	ActorID       string              `json:"actor_id,omitempty"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	Type          model.BookingType   `json:"type"`
	Status        model.BookingStatus `json:"status"`
	CreditsEarned int                 `json:"credits_earned"`
	CreditsUsed   int                 `json:"credits_used"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// NewBookingEvent builds the event for b under the given routing key.
func NewBookingEvent(key string, b model.Booking, actorID string, at time.Time) BookingEvent {
	return BookingEvent{
		Event:         key,
		BookingID:     b.ID,
		RoomID:        b.RoomID,
		UserID:        b.UserID,
		ActorID:       actorID,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Type:          b.Type,
		Status:        b.Status,
		CreditsEarned: b.CreditsEarned,
		CreditsUsed:   b.CreditsUsed,
		OccurredAt:    at.UTC(),
	}
}

// RoomEvent is published after a room is created or edited.
type RoomEvent struct {
	Event      string    `json:"event"`
	RoomID     string    `json:"room_id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	TenantID   string    `json:"assigned_monthly_tenant_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewRoomEvent builds the event for r under the given routing key.
func NewRoomEvent(key string, r model.Room, actorID string, at time.Time) RoomEvent {
	ev := RoomEvent{
		Event: key, RoomID: r.ID, Name: r.Name, OwnerID: r.OwnerID,
		ActorID: actorID, OccurredAt: at.UTC(),
	}
	if r.AssignedMonthlyTenantID != nil {
		ev.TenantID = *r.AssignedMonthlyTenantID
	}
	return ev
}

// RemovalEvent is published when a room or a user is deleted together with
// its related data.
type RemovalEvent struct {
	Event      string    `json:"event"`
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Removed    int64     `json:"removed_bookings"`
	OccurredAt time.Time `json:"occurred_at"`
}
