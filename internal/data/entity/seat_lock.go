package entity

import (
	"strings"
	"time"
)

type LockState string

const (
	LockStateHeld      LockState = "HELD"
	LockStateConfirmed LockState = "CONFIRMED"
)

// SeatLock is one temporary or permanent reservation of a single seat on a
// trip. Locks are created in batches ("hold groups") and share a GroupID;
// the whole group is later attached to a booking, confirmed on payment
// success, or released on cancellation or TTL expiry.
//
// At most one non-released lock exists per (TripID, SeatNo) at any time.
// ExpiresAt is only meaningful while the lock is HELD; a CONFIRMED lock has
// no expiry and is removed only by an explicit release (refund path).
type SeatLock struct {
	TripID         int64     `json:"trip_id"`
	SeatNo         string    `json:"seat_no"`
	GroupID        string    `json:"group_id"`
	BookingID      string    `json:"booking_id,omitempty"` // empty until a booking is attached
	State          LockState `json:"state"`
	ExpiresAt      time.Time `json:"expires_at"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}

// Expired reports whether a HELD lock has passed its TTL. CONFIRMED locks
// never expire.
func (l *SeatLock) Expired(now time.Time) bool {
	return l.State == LockStateHeld && !l.ExpiresAt.After(now)
}

// NormalizeSeatNo canonicalizes a client-supplied seat number so "a1" and
// " A1 " address the same seat key.
func NormalizeSeatNo(seatNo string) string {
	return strings.ToUpper(strings.TrimSpace(seatNo))
}
