package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trip-booking/internal/data/repository"
	"trip-booking/internal/inventory"
	"trip-booking/pkg/clock"
)

// expireBatchSize bounds one cleanup pass over the bookings table.
const expireBatchSize = 200

// Scheduler is the only component that expires bookings on time. Each tick
// it sweeps lapsed seat holds, expires the bookings attached to them, and
// then settles bookings whose deadline passed but whose lock records are
// already gone (for example after a store restart).
type Scheduler struct {
	repo     *repository.Repository
	inv      inventory.Service
	booking  BookingService
	clk      clock.Clock
	interval time.Duration
	log      *zap.Logger
}

func NewScheduler(repo *repository.Repository, inv inventory.Service, booking BookingService, clk clock.Clock, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		repo:     repo,
		inv:      inv,
		booking:  booking,
		clk:      clk,
		interval: interval,
		log:      log.With(zap.String("worker", "reconciliation_scheduler")),
	}
}

// Start runs the cleanup loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("Reconciliation scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ctx.Done():
				s.log.Info("Reconciliation scheduler stopped")
				return
			case <-ticker.C:
				expired, released, err := s.TriggerCleanup(ctx)
				if err != nil {
					s.log.Error("Cleanup pass failed", zap.Error(err))
					continue
				}
				if expired > 0 || released > 0 {
					s.log.Info("Cleanup pass finished",
						zap.Int("expired_bookings", expired),
						zap.Int("released_groups", released),
					)
				}
			}
		}
	}()
}

// TriggerCleanup runs one cleanup pass and reports how many bookings were
// expired and how many hold groups were released. It also backs the manual
// admin endpoint.
func (s *Scheduler) TriggerCleanup(ctx context.Context) (int, int, error) {
	var expired int

	groups, err := s.inv.SweepExpired(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, group := range groups {
		if group.BookingID == "" {
			continue
		}
		if err := s.booking.ExpireBooking(ctx, group.BookingID); err != nil {
			// Terminal bookings are fine; anything else is worth a log.
			s.log.Warn("Failed to expire booking for swept group",
				zap.Error(err),
				zap.String("booking_id", group.BookingID),
				zap.String("group_id", group.GroupID),
			)
			continue
		}
		expired++
	}

	// Bookings past their deadline whose locks already vanished.
	stale, err := s.repo.Booking.FindExpiredAwaitingPayment(ctx, s.clk.Now(), expireBatchSize)
	if err != nil {
		return expired, len(groups), err
	}
	for _, booking := range stale {
		if err := s.booking.ExpireBooking(ctx, booking.ID.String()); err != nil {
			s.log.Warn("Failed to expire overdue booking",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
			)
			continue
		}
		expired++
	}

	return expired, len(groups), nil
}

// ExpiredCount reports how many bookings are past their deadline but not
// yet settled, a cheap probe for dashboards and tests.
func (s *Scheduler) ExpiredCount(ctx context.Context) (int64, error) {
	return s.repo.Booking.CountExpiredAwaitingPayment(ctx, s.clk.Now())
}
