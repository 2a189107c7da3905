package repository

import (
	"go.uber.org/zap"

	"trip-booking/pkg/database"
)

type Repository struct {
	Booking BookingRepository
	Payment PaymentTransactionRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Booking: NewBookingRepository(db, log),
		Payment: NewPaymentTransactionRepository(db, log),
	}
}
