package entity

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusAwaitingPayment BookingStatus = "AWAITING_PAYMENT"
	BookingStatusConfirmed       BookingStatus = "CONFIRMED"
	BookingStatusCanceled        BookingStatus = "CANCELED"
	BookingStatusExpired         BookingStatus = "EXPIRED"
)

// Booking ties a hold group to a customer order. It is created once the
// hold group exists, driven through its state machine by payment callbacks,
// admin actions and the reconciliation jobs, and never hard-deleted:
// terminal states are retained for audit.
type Booking struct {
	Base
	Code        string        `db:"code"`
	TripID      int64         `db:"trip_id"`
	LockGroupID string        `db:"lock_group_id"`
	Quantity    int           `db:"quantity"`
	TotalAmount float64       `db:"total_amount"`
	Status      BookingStatus `db:"status"`
	ExpiresAt   time.Time     `db:"expires_at"`
}

// IsTerminal reports whether the status absorbs all further transitions.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCanceled, BookingStatusExpired:
		return true
	}
	return false
}

// CanTransition is the booking state machine guard. The only legal moves
// are out of AWAITING_PAYMENT; every terminal state is absorbing.
func (b *Booking) CanTransition(to BookingStatus) bool {
	if b.Status != BookingStatusAwaitingPayment {
		return false
	}
	switch to {
	case BookingStatusConfirmed, BookingStatusCanceled, BookingStatusExpired:
		return true
	}
	return false
}

// IsExpired reports whether the payment deadline has passed for a booking
// still awaiting payment. Terminal bookings are never "expired" in this
// sense; they already resolved.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingStatusAwaitingPayment && !b.ExpiresAt.After(now)
}

// TransitionError reports an attempted move the state machine refused.
type TransitionError struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %s: illegal transition %s -> %s", e.BookingID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrConflict }
