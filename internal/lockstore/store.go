// Package lockstore holds the keyed seat-lock records behind the seat
// inventory. Locks are addressed by (trip, seat) with secondary indexes by
// hold group and idempotency key. The store is the only layer that touches
// the backing medium; per-seat mutation is atomic here so the inventory on
// top never needs read-then-write sequences.
package lockstore

import (
	"context"
	"time"

	"trip-booking/internal/data/entity"
)

// Store is the backing medium for seat locks. Implementations must make
// PutIfAbsent and ConfirmGroup atomic with respect to concurrent calls on
// the same keys: two overlapping batch puts must never both succeed, and a
// confirm must re-validate lock presence at the moment of the state change.
type Store interface {
	// PutIfAbsent inserts the whole batch or nothing. Every lock must share
	// the same trip, group and idempotency key. It returns the seat numbers
	// that already carry a live lock when the batch is rejected.
	PutIfAbsent(ctx context.Context, locks []entity.SeatLock, ttl time.Duration) (conflicts []string, err error)

	// Get returns the live lock for a seat, or nil when there is none.
	Get(ctx context.Context, tripID int64, seatNo string) (*entity.SeatLock, error)

	// GetGroup returns all live locks in a hold group; empty when the group
	// has expired or been released.
	GetGroup(ctx context.Context, groupID string) ([]entity.SeatLock, error)

	// GetByIdempotencyKey returns the locks created by a previous hold call
	// with the same key, for idempotent replay.
	GetByIdempotencyKey(ctx context.Context, key string) ([]entity.SeatLock, error)

	// GetByBooking returns the live locks attached to a booking.
	GetByBooking(ctx context.Context, bookingID string) ([]entity.SeatLock, error)

	// AttachBooking stamps bookingID on every live lock in the group and
	// returns how many locks were updated.
	AttachBooking(ctx context.Context, groupID, bookingID string) (int, error)

	// ConfirmGroup flips every HELD lock in the group to CONFIRMED, clearing
	// its expiry, and returns how many locks are CONFIRMED for the group
	// after the call (already-CONFIRMED locks count). Locks swept between
	// the caller's read and this call are simply absent from the count.
	ConfirmGroup(ctx context.Context, groupID, bookingID string) (int, error)

	// ReleaseGroup deletes every lock in the group regardless of state and
	// returns what was removed. Releasing an absent group is a no-op.
	ReleaseGroup(ctx context.Context, groupID string) ([]entity.SeatLock, error)

	// SweepExpired removes HELD locks whose expiry has passed and returns
	// them. CONFIRMED locks are never touched.
	SweepExpired(ctx context.Context, now time.Time) ([]entity.SeatLock, error)
}
