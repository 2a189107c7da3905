// Package inventory implements the seat hold protocol on top of a lock
// store: batch holds with a TTL, attachment to a booking, confirmation on
// payment and release on cancellation or expiry.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
	"trip-booking/internal/lockstore"
	"trip-booking/pkg/clock"
)

const (
	// DefaultHoldTTL applies when the client does not ask for a TTL.
	DefaultHoldTTL = 180 * time.Second
	// MaxHoldTTL caps client-requested TTLs.
	MaxHoldTTL = 300 * time.Second
)

// ExpiredGroup is one hold group removed by a sweep, aggregated so the
// caller can expire the attached booking in a single step.
type ExpiredGroup struct {
	GroupID   string
	BookingID string
	TripID    int64
	SeatNos   []string
}

type Service interface {
	// Hold places an all-or-nothing batch of seat locks for a trip. A
	// repeated call with the same idempotency key returns the locks of the
	// original hold while they are still alive.
	Hold(ctx context.Context, tripID int64, seatNos []string, ttl time.Duration, idempotencyKey string) ([]entity.SeatLock, error)

	// AttachBooking ties an existing hold group to a booking id.
	AttachBooking(ctx context.Context, groupID, bookingID string) error

	// Confirm flips every lock in the group to CONFIRMED. It fails with a
	// conflict when fewer than expected locks survive, so a payment that
	// raced the sweep cannot confirm a partial group.
	Confirm(ctx context.Context, groupID, bookingID string, expected int) error

	// Release frees the group's seats regardless of lock state.
	Release(ctx context.Context, groupID string) error

	// Locks returns the live locks of a group.
	Locks(ctx context.Context, groupID string) ([]entity.SeatLock, error)

	// LocksByBooking returns the live locks attached to a booking.
	LocksByBooking(ctx context.Context, bookingID string) ([]entity.SeatLock, error)

	// SweepExpired removes every lapsed hold and reports the affected
	// groups.
	SweepExpired(ctx context.Context) ([]ExpiredGroup, error)
}

type service struct {
	store lockstore.Store
	clk   clock.Clock
	log   *zap.Logger
}

func NewService(store lockstore.Store, clk clock.Clock, log *zap.Logger) Service {
	return &service{
		store: store,
		clk:   clk,
		log:   log.With(zap.String("service", "inventory")),
	}
}

func (s *service) Hold(ctx context.Context, tripID int64, seatNos []string, ttl time.Duration, idempotencyKey string) ([]entity.SeatLock, error) {
	if tripID <= 0 {
		return nil, fmt.Errorf("hold: trip id must be positive: %w", entity.ErrInvariant)
	}

	seats := normalizeSeats(seatNos)
	if len(seats) == 0 {
		return nil, fmt.Errorf("hold: at least one seat is required: %w", entity.ErrInvariant)
	}

	switch {
	case ttl <= 0:
		ttl = DefaultHoldTTL
	case ttl > MaxHoldTTL:
		ttl = MaxHoldTTL
	}

	// Replay: same key, same answer, as long as the original hold lives.
	if idempotencyKey != "" {
		existing, err := s.store.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("hold replay lookup: %w", err)
		}
		if len(existing) > 0 {
			s.log.Info("Hold replayed by idempotency key",
				zap.String("group_id", existing[0].GroupID),
				zap.Int64("trip_id", tripID),
				zap.Int("seat_count", len(existing)),
			)
			return existing, nil
		}
	}

	now := s.clk.Now()
	groupID := uuid.NewString()
	locks := make([]entity.SeatLock, len(seats))
	for i, seat := range seats {
		locks[i] = entity.SeatLock{
			TripID:         tripID,
			SeatNo:         seat,
			GroupID:        groupID,
			State:          entity.LockStateHeld,
			ExpiresAt:      now.Add(ttl),
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
		}
	}

	conflicts, err := s.store.PutIfAbsent(ctx, locks, ttl)
	if err != nil {
		return nil, fmt.Errorf("hold seats on trip %d: %w", tripID, err)
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		s.log.Warn("Hold rejected, seats taken",
			zap.Int64("trip_id", tripID),
			zap.Strings("conflicts", conflicts),
		)
		return nil, &entity.ConflictError{TripID: tripID, Seats: conflicts}
	}

	s.log.Info("Seats held",
		zap.String("group_id", groupID),
		zap.Int64("trip_id", tripID),
		zap.Strings("seats", seats),
		zap.Duration("ttl", ttl),
	)
	return locks, nil
}

func (s *service) AttachBooking(ctx context.Context, groupID, bookingID string) error {
	if groupID == "" || bookingID == "" {
		return fmt.Errorf("attach booking: group and booking ids are required: %w", entity.ErrInvariant)
	}

	n, err := s.store.AttachBooking(ctx, groupID, bookingID)
	if err != nil {
		return fmt.Errorf("attach booking %s to group %s: %w", bookingID, groupID, err)
	}
	if n == 0 {
		return fmt.Errorf("hold group %s has no live locks: %w", groupID, entity.ErrNotFound)
	}

	s.log.Info("Booking attached to hold group",
		zap.String("group_id", groupID),
		zap.String("booking_id", bookingID),
		zap.Int("lock_count", n),
	)
	return nil
}

func (s *service) Confirm(ctx context.Context, groupID, bookingID string, expected int) error {
	n, err := s.store.ConfirmGroup(ctx, groupID, bookingID)
	if err != nil {
		return fmt.Errorf("confirm group %s: %w", groupID, err)
	}
	if n == 0 {
		return fmt.Errorf("hold group %s already expired: %w", groupID, entity.ErrExpired)
	}
	if expected > 0 && n < expected {
		// Partial groups must not stand; the caller releases what was
		// flipped.
		return fmt.Errorf("confirmed %d of %d locks in group %s: %w", n, expected, groupID, entity.ErrConflict)
	}

	s.log.Info("Hold group confirmed",
		zap.String("group_id", groupID),
		zap.String("booking_id", bookingID),
		zap.Int("lock_count", n),
	)
	return nil
}

func (s *service) Release(ctx context.Context, groupID string) error {
	released, err := s.store.ReleaseGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("release group %s: %w", groupID, err)
	}

	s.log.Info("Hold group released",
		zap.String("group_id", groupID),
		zap.Int("lock_count", len(released)),
	)
	return nil
}

func (s *service) Locks(ctx context.Context, groupID string) ([]entity.SeatLock, error) {
	locks, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", groupID, err)
	}
	return locks, nil
}

func (s *service) LocksByBooking(ctx context.Context, bookingID string) ([]entity.SeatLock, error) {
	locks, err := s.store.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get locks for booking %s: %w", bookingID, err)
	}
	return locks, nil
}

func (s *service) SweepExpired(ctx context.Context) ([]ExpiredGroup, error) {
	swept, err := s.store.SweepExpired(ctx, s.clk.Now())
	if err != nil {
		return nil, fmt.Errorf("sweep expired holds: %w", err)
	}
	if len(swept) == 0 {
		return nil, nil
	}

	byGroup := make(map[string]*ExpiredGroup)
	var order []string
	for _, lock := range swept {
		g, ok := byGroup[lock.GroupID]
		if !ok {
			g = &ExpiredGroup{
				GroupID:   lock.GroupID,
				BookingID: lock.BookingID,
				TripID:    lock.TripID,
			}
			byGroup[lock.GroupID] = g
			order = append(order, lock.GroupID)
		}
		g.SeatNos = append(g.SeatNos, lock.SeatNo)
	}

	groups := make([]ExpiredGroup, 0, len(order))
	for _, id := range order {
		sort.Strings(byGroup[id].SeatNos)
		groups = append(groups, *byGroup[id])
	}

	s.log.Info("Expired holds swept",
		zap.Int("group_count", len(groups)),
		zap.Int("lock_count", len(swept)),
	)
	return groups, nil
}

// normalizeSeats canonicalizes seat numbers and drops duplicates and
// blanks while keeping the caller's order.
func normalizeSeats(seatNos []string) []string {
	seen := make(map[string]bool, len(seatNos))
	out := make([]string, 0, len(seatNos))
	for _, raw := range seatNos {
		seat := entity.NormalizeSeatNo(raw)
		if seat == "" || seen[seat] {
			continue
		}
		seen[seat] = true
		out = append(out, seat)
	}
	return out
}
