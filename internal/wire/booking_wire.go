package wire

import (
	"trip-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler) {
	// ==================== BOOKING ROUTES ====================
	// POST /api/booking - Create a booking from a live hold group
	r.Post("/api/booking", bookingHandler.CreateBooking)

	// GET /api/booking/{id} - Booking detail with payment transactions
	r.Get("/api/booking/{id}", bookingHandler.GetBooking)

	// GET /api/booking/code/{code} - Lookup by human-readable code
	r.Get("/api/booking/code/{code}", bookingHandler.GetBookingByCode)

	// PUT /api/booking/{id}/cancel - Cancel an awaiting-payment booking
	r.Put("/api/booking/{id}/cancel", bookingHandler.CancelBooking)
}
