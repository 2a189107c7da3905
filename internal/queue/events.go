// Package queue publishes booking lifecycle events to the message broker
// so downstream consumers (notifications, analytics) act without querying
// the primary database.
package queue

import "time"

const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCanceled  = "booking.canceled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent carries one lifecycle change of a booking.
type BookingEvent struct {
	Type        string    `json:"type"`
	BookingID   string    `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	TripID      int64     `json:"trip_id"`
	Seats       []string  `json:"seats,omitempty"`
	TotalAmount float64   `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}
