package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trip-booking/internal/data/entity"
	"trip-booking/internal/data/repository"
	"trip-booking/internal/dto/request"
	"trip-booking/internal/dto/response"
	"trip-booking/internal/inventory"
	"trip-booking/pkg/clock"
	"trip-booking/pkg/gateway"
	"trip-booking/pkg/utils"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error)
	HandleCallback(ctx context.Context, req *request.PaymentCallbackRequest) (*response.PaymentResponse, error)
	GetTransaction(ctx context.Context, transactionID string) (*response.PaymentResponse, error)

	// ApplyResult is the single entry for gateway results, shared by the
	// callback endpoint and the reconciliation poller.
	ApplyResult(ctx context.Context, txn *entity.PaymentTransaction, code, message string) error
}

type paymentService struct {
	repo    *repository.Repository
	booking BookingService
	inv     inventory.Service
	gw      gateway.PaymentGateway
	clk     clock.Clock
	log     *zap.Logger
}

func NewPaymentService(repo *repository.Repository, booking BookingService, inv inventory.Service, gw gateway.PaymentGateway, clk clock.Clock, log *zap.Logger) PaymentService {
	return &paymentService{
		repo:    repo,
		booking: booking,
		inv:     inv,
		gw:      gw,
		clk:     clk,
		log:     log.With(zap.String("service", "payment")),
	}
}

// mapGatewayStatus translates a provider result code. Unknown codes map to
// FAILED: a payment is only ever successful on an explicit success code.
func mapGatewayStatus(code string) entity.PaymentStatus {
	switch code {
	case gateway.CodeSuccess:
		return entity.PaymentStatusSuccess
	case gateway.CodeProcessing, gateway.CodePending:
		return entity.PaymentStatusProcessing
	case gateway.CodeRefunded:
		return entity.PaymentStatusRefunded
	default:
		return entity.PaymentStatusFailed
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Initiate payment validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking ID format %s: %w", req.BookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", req.BookingID, entity.ErrNotFound)
	}

	if booking.Status != entity.BookingStatusAwaitingPayment {
		return nil, &entity.TransitionError{BookingID: req.BookingID, From: booking.Status, To: entity.BookingStatusConfirmed}
	}
	if booking.IsExpired(s.clk.Now()) {
		// The scheduler will settle the record; no point in taking money.
		return nil, fmt.Errorf("booking %s payment deadline passed: %w", req.BookingID, entity.ErrExpired)
	}

	now := s.clk.Now()
	txn := &entity.PaymentTransaction{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		TransactionID: utils.GenerateTransactionID(),
		BookingID:     bookingID,
		OrderRef:      booking.Code,
		Method:        req.Method,
		Status:        entity.PaymentStatusInitiated,
		Amount:        booking.TotalAmount,
	}

	if err := s.repo.Payment.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("create payment transaction: %w", err)
	}

	payURL, err := s.gw.CreatePayment(ctx, txn.TransactionID, txn.OrderRef, txn.Amount)
	if err != nil {
		s.log.Error("Gateway rejected payment creation",
			zap.Error(err),
			zap.String("transaction_id", txn.TransactionID),
		)
		s.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusFailed, "gateway rejected payment creation")
		return nil, fmt.Errorf("create payment with gateway: %w: %w", entity.ErrGateway, err)
	}

	s.log.Info("Payment initiated",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("booking_id", req.BookingID),
		zap.String("method", req.Method),
		zap.Float64("amount", txn.Amount),
	)

	resp := response.PaymentToResponse(txn)
	resp.PayURL = payURL
	return &resp, nil
}

func (s *paymentService) HandleCallback(ctx context.Context, req *request.PaymentCallbackRequest) (*response.PaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Payment callback validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("validation failed: %s", utils.FormatValidationErrors(errs))
	}

	txn, err := s.repo.Payment.FindByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("payment transaction %s: %w", req.TransactionID, entity.ErrNotFound)
	}

	if err := s.ApplyResult(ctx, txn, req.Code, req.Message); err != nil {
		return nil, err
	}

	// Reload for the note trail.
	txn, err = s.repo.Payment.FindByTransactionID(ctx, req.TransactionID)
	if err != nil || txn == nil {
		return nil, fmt.Errorf("reload payment transaction %s: %w", req.TransactionID, err)
	}

	resp := response.PaymentToResponse(txn)
	return &resp, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, transactionID string) (*response.PaymentResponse, error) {
	txn, err := s.repo.Payment.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("payment transaction %s: %w", transactionID, entity.ErrNotFound)
	}

	resp := response.PaymentToResponse(txn)
	return &resp, nil
}

// ApplyResult reconciles one gateway result with the transaction and its
// booking. A success result confirms the booking only while the booking is
// still confirmable; a payment that lands after expiry fails the
// transaction with a refund note and the booking stays expired. A declined
// result cancels the booking and frees its seats.
func (s *paymentService) ApplyResult(ctx context.Context, txn *entity.PaymentTransaction, code, message string) error {
	next := mapGatewayStatus(code)

	if txn.Status == next {
		return nil
	}
	if txn.Status.IsFinal() && next != entity.PaymentStatusRefunded {
		s.log.Warn("Ignoring gateway result for settled transaction",
			zap.String("transaction_id", txn.TransactionID),
			zap.String("status", string(txn.Status)),
			zap.String("code", code),
		)
		return nil
	}

	note := fmt.Sprintf("gateway code %s", code)
	if message != "" {
		note = fmt.Sprintf("gateway code %s: %s", code, message)
	}

	switch next {
	case entity.PaymentStatusSuccess:
		return s.applySuccess(ctx, txn, note)

	case entity.PaymentStatusProcessing:
		return s.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusProcessing, note)

	case entity.PaymentStatusRefunded:
		return s.applyRefund(ctx, txn, note)

	default:
		return s.applyFailure(ctx, txn, code, note)
	}
}

// applyFailure settles a declined result. The booking is canceled so its
// seats go back on sale; a booking that already resolved is left alone.
func (s *paymentService) applyFailure(ctx context.Context, txn *entity.PaymentTransaction, code, note string) error {
	s.log.Info("Payment failed",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("code", code),
	)

	if err := s.booking.CancelBooking(ctx, txn.BookingID.String()); err != nil {
		if !errors.Is(err, entity.ErrConflict) && !errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("cancel booking %s after failed payment: %w", txn.BookingID.String(), err)
		}
		s.log.Warn("Booking already settled, recording payment failure only",
			zap.Error(err),
			zap.String("booking_id", txn.BookingID.String()),
		)
	}

	return s.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusFailed, note)
}

// applyRefund records the refund and frees the seats. The booking keeps
// its terminal status; the transaction carries the refund trail.
func (s *paymentService) applyRefund(ctx context.Context, txn *entity.PaymentTransaction, note string) error {
	s.log.Info("Payment refunded",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("booking_id", txn.BookingID.String()),
	)

	booking, err := s.repo.Booking.FindByID(ctx, txn.BookingID)
	if err != nil {
		return err
	}
	if booking != nil {
		if err := s.inv.Release(ctx, booking.LockGroupID); err != nil {
			s.log.Warn("Releasing seats after refund failed",
				zap.Error(err),
				zap.String("lock_group_id", booking.LockGroupID),
			)
		}
	}

	return s.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusRefunded, note)
}

func (s *paymentService) applySuccess(ctx context.Context, txn *entity.PaymentTransaction, note string) error {
	err := s.booking.ConfirmBooking(ctx, txn.BookingID.String())
	switch {
	case err == nil:
		s.log.Info("Payment succeeded, booking confirmed",
			zap.String("transaction_id", txn.TransactionID),
			zap.String("booking_id", txn.BookingID.String()),
		)
		return s.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusSuccess, note)

	case errors.Is(err, entity.ErrExpired), errors.Is(err, entity.ErrConflict):
		// The money arrived after the booking resolved the other way.
		// The transaction is failed rather than confirmed, with enough
		// detail on the record to drive the refund.
		s.log.Warn("Payment succeeded for unconfirmable booking",
			zap.Error(err),
			zap.String("transaction_id", txn.TransactionID),
			zap.String("booking_id", txn.BookingID.String()),
		)
		refundNote := fmt.Sprintf("%s; booking not confirmable (%v), refund required", note, err)
		return s.repo.Payment.UpdateStatus(ctx, txn.ID, entity.PaymentStatusFailed, refundNote)

	default:
		return fmt.Errorf("confirm booking %s after payment: %w", txn.BookingID.String(), err)
	}
}
