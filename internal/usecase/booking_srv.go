package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
	"trip-booking/internal/data/repository"
	"trip-booking/internal/dto/request"
	"trip-booking/internal/dto/response"
	"trip-booking/internal/inventory"
	"trip-booking/internal/queue"
	"trip-booking/pkg/clock"
	"trip-booking/pkg/pricing"
	"trip-booking/pkg/utils"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error)
	GetBookingByCode(ctx context.Context, code string) (*response.BookingDetailResponse, error)
	ListBookings(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// State machine transitions
	ConfirmBooking(ctx context.Context, bookingID string) error
	CancelBooking(ctx context.Context, bookingID string) error
	ExpireBooking(ctx context.Context, bookingID string) error
}

type bookingService struct {
	repo   *repository.Repository
	inv    inventory.Service
	pricer pricing.Pricer
	pub    *queue.Publisher
	clk    clock.Clock
	log    *zap.Logger
}

func NewBookingService(repo *repository.Repository, inv inventory.Service, pricer pricing.Pricer, pub *queue.Publisher, clk clock.Clock, log *zap.Logger) BookingService {
	return &bookingService{
		repo:   repo,
		inv:    inv,
		pricer: pricer,
		pub:    pub,
		clk:    clk,
		log:    log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	// One booking per hold group; a retry returns the existing one.
	existing, err := s.repo.Booking.FindByLockGroupID(ctx, req.LockGroupID)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if existing != nil {
		locks, _ := s.inv.Locks(ctx, existing.LockGroupID)
		return response.BookingToResponse(existing, seatNumbers(locks)), nil
	}

	locks, err := s.inv.Locks(ctx, req.LockGroupID)
	if err != nil {
		return nil, fmt.Errorf("load hold group %s: %w", req.LockGroupID, err)
	}
	if len(locks) == 0 {
		return nil, fmt.Errorf("hold group %s not found or expired: %w", req.LockGroupID, entity.ErrNotFound)
	}
	for _, l := range locks {
		if l.State != entity.LockStateHeld {
			return nil, fmt.Errorf("hold group %s already confirmed: %w", req.LockGroupID, entity.ErrConflict)
		}
	}

	seats := seatNumbers(locks)
	tripID := locks[0].TripID

	amount, err := s.pricer.Quote(ctx, tripID, seats)
	if err != nil {
		return nil, fmt.Errorf("quote trip %d: %w", tripID, err)
	}

	// The booking deadline is the hold deadline: once the locks lapse
	// there is nothing left to pay for.
	now := s.clk.Now()
	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Code:        utils.GenerateBookingCode(),
		TripID:      tripID,
		LockGroupID: req.LockGroupID,
		Quantity:    len(locks),
		TotalAmount: amount,
		Status:      entity.BookingStatusAwaitingPayment,
		ExpiresAt:   locks[0].ExpiresAt,
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := s.inv.AttachBooking(ctx, req.LockGroupID, booking.ID.String()); err != nil {
		// The hold lapsed between the read and the attach; the booking is
		// dead on arrival.
		s.repo.Booking.UpdateStatusFrom(ctx, booking.ID, entity.BookingStatusAwaitingPayment, entity.BookingStatusExpired)
		return nil, fmt.Errorf("attach booking %s: %w", booking.ID.String(), err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("code", booking.Code),
		zap.Int64("trip_id", tripID),
		zap.Strings("seats", seats),
		zap.Float64("total_amount", amount),
	)

	s.publish(ctx, queue.EventBookingCreated, booking, seats)

	return response.BookingToResponse(booking, seats), nil
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}

	return s.buildDetailResponse(ctx, booking)
}

func (s *bookingService) GetBookingByCode(ctx context.Context, code string) (*response.BookingDetailResponse, error) {
	booking, err := s.repo.Booking.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking code %s: %w", code, entity.ErrNotFound)
	}

	return s.buildDetailResponse(ctx, booking)
}

func (s *bookingService) ListBookings(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.repo.Booking.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	total, err := s.repo.Booking.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	items := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		locks, _ := s.inv.Locks(ctx, booking.LockGroupID)
		items[i] = *response.BookingToResponse(booking, seatNumbers(locks))
	}

	return response.NewPaginatedResponse(items, req.Page, req.PerPage, total), nil
}

// ConfirmBooking moves an awaiting booking to CONFIRMED. Seats are
// confirmed before the status flips: if the hold lapsed the booking must
// expire, never confirm against missing seats.
func (s *bookingService) ConfirmBooking(ctx context.Context, bookingID string) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if booking == nil {
		return fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}

	if booking.Status == entity.BookingStatusConfirmed {
		return nil
	}
	if booking.Status.IsTerminal() {
		return &entity.TransitionError{BookingID: bookingID, From: booking.Status, To: entity.BookingStatusConfirmed}
	}

	if err := s.inv.Confirm(ctx, booking.LockGroupID, bookingID, booking.Quantity); err != nil {
		s.log.Warn("Seat confirm failed, expiring booking",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		s.expireInternal(ctx, booking)
		return fmt.Errorf("confirm seats for booking %s: %w", bookingID, err)
	}

	ok, err := s.repo.Booking.UpdateStatusFrom(ctx, id, entity.BookingStatusAwaitingPayment, entity.BookingStatusConfirmed)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.repo.Booking.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current != nil && current.Status == entity.BookingStatusConfirmed {
			return nil
		}
		// A cancel or expiry won the status race after the seats were
		// already confirmed; give the seats back.
		s.inv.Release(ctx, booking.LockGroupID)
		from := entity.BookingStatusAwaitingPayment
		if current != nil {
			from = current.Status
		}
		return &entity.TransitionError{BookingID: bookingID, From: from, To: entity.BookingStatusConfirmed}
	}

	seats := seatNumbersFromGroup(ctx, s.inv, booking.LockGroupID)
	booking.Status = entity.BookingStatusConfirmed

	s.log.Info("Booking confirmed",
		zap.String("booking_id", bookingID),
		zap.String("code", booking.Code),
	)

	s.publish(ctx, queue.EventBookingConfirmed, booking, seats)
	return nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID string) error {
	return s.terminate(ctx, bookingID, entity.BookingStatusCanceled, queue.EventBookingCanceled)
}

func (s *bookingService) ExpireBooking(ctx context.Context, bookingID string) error {
	return s.terminate(ctx, bookingID, entity.BookingStatusExpired, queue.EventBookingExpired)
}

// terminate drives a booking into CANCELED or EXPIRED and frees its
// seats. Repeating the same transition is a no-op.
func (s *bookingService) terminate(ctx context.Context, bookingID string, to entity.BookingStatus, eventType string) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if booking == nil {
		return fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}

	if booking.Status == to {
		return nil
	}
	if booking.Status.IsTerminal() {
		return &entity.TransitionError{BookingID: bookingID, From: booking.Status, To: to}
	}

	ok, err := s.repo.Booking.UpdateStatusFrom(ctx, id, entity.BookingStatusAwaitingPayment, to)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.repo.Booking.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current != nil && current.Status == to {
			return nil
		}
		from := booking.Status
		if current != nil {
			from = current.Status
		}
		return &entity.TransitionError{BookingID: bookingID, From: from, To: to}
	}

	if err := s.inv.Release(ctx, booking.LockGroupID); err != nil {
		// The sweep picks up whatever is left; the status change stands.
		s.log.Warn("Failed to release seats for terminated booking",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
	}

	booking.Status = to

	s.log.Info("Booking terminated",
		zap.String("booking_id", bookingID),
		zap.String("code", booking.Code),
		zap.String("status", string(to)),
	)

	s.publish(ctx, eventType, booking, nil)
	return nil
}

// expireInternal is the failure path of ConfirmBooking; errors are logged
// only, the caller reports the original confirm failure.
func (s *bookingService) expireInternal(ctx context.Context, booking *entity.Booking) {
	ok, err := s.repo.Booking.UpdateStatusFrom(ctx, booking.ID, entity.BookingStatusAwaitingPayment, entity.BookingStatusExpired)
	if err != nil {
		s.log.Error("Failed to expire booking", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return
	}
	if ok {
		s.inv.Release(ctx, booking.LockGroupID)
		booking.Status = entity.BookingStatusExpired
		s.publish(ctx, queue.EventBookingExpired, booking, nil)
	}
}

func (s *bookingService) buildDetailResponse(ctx context.Context, booking *entity.Booking) (*response.BookingDetailResponse, error) {
	locks, _ := s.inv.Locks(ctx, booking.LockGroupID)

	txns, err := s.repo.Payment.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("load payment transactions: %w", err)
	}

	detail := &response.BookingDetailResponse{
		BookingResponse: *response.BookingToResponse(booking, seatNumbers(locks)),
	}
	for _, txn := range txns {
		detail.Transactions = append(detail.Transactions, response.PaymentToResponse(txn))
	}
	return detail, nil
}

func (s *bookingService) publish(ctx context.Context, eventType string, booking *entity.Booking, seats []string) {
	err := s.pub.Publish(ctx, queue.BookingEvent{
		Type:        eventType,
		BookingID:   booking.ID.String(),
		BookingCode: booking.Code,
		TripID:      booking.TripID,
		Seats:       seats,
		TotalAmount: booking.TotalAmount,
		OccurredAt:  s.clk.Now(),
	})
	if err != nil {
		s.log.Warn("Failed to publish booking event",
			zap.Error(err),
			zap.String("type", eventType),
			zap.String("booking_id", booking.ID.String()),
		)
	}
}

func seatNumbers(locks []entity.SeatLock) []string {
	seats := make([]string, len(locks))
	for i, l := range locks {
		seats[i] = l.SeatNo
	}
	return seats
}

func seatNumbersFromGroup(ctx context.Context, inv inventory.Service, groupID string) []string {
	locks, err := inv.Locks(ctx, groupID)
	if err != nil {
		return nil
	}
	return seatNumbers(locks)
}
