package wire

import (
	"trip-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireSeat(r chi.Router, seatHandler *adaptor.SeatHandler) {
	// ==================== SEAT HOLD ROUTES ====================
	r.Route("/api/seats", func(r chi.Router) {
		// POST /api/seats/hold - Hold a batch of seats on a trip
		r.Post("/hold", seatHandler.HoldSeats)

		// POST /api/seats/attach - Tie a hold group to a booking
		r.Post("/attach", seatHandler.AttachBooking)

		// GET /api/seats/hold/{groupID} - Inspect a hold group
		r.Get("/hold/{groupID}", seatHandler.GetHold)

		// DELETE /api/seats/hold/{groupID} - Release a hold group
		r.Delete("/hold/{groupID}", seatHandler.ReleaseHold)
	})
}
