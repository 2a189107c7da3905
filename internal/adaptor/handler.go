package adaptor

import (
	"trip-booking/internal/inventory"
	"trip-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Seat    *SeatHandler
	Booking *BookingHandler
	Payment *PaymentHandler
	Admin   *AdminHandler
}

func NewHandler(service *usecase.Service, inv inventory.Service, log *zap.Logger) *Handler {
	return &Handler{
		Seat:    NewSeatHandler(inv, log),
		Booking: NewBookingHandler(service.Booking, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Admin:   NewAdminHandler(service.Booking, service.Scheduler, service.Reconciler, log),
	}
}
