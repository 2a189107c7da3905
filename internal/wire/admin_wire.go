package wire

import (
	"trip-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAdmin(r chi.Router, adminHandler *adaptor.AdminHandler) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin", func(r chi.Router) {
		// GET /api/admin/bookings - Paginated booking list
		r.Get("/bookings", adminHandler.ListBookings)

		// PUT /api/admin/bookings/{id}/confirm - Manual settlement
		r.Put("/bookings/{id}/confirm", adminHandler.ConfirmBooking)

		// PUT /api/admin/bookings/{id}/cancel - Cancel any open booking
		r.Put("/bookings/{id}/cancel", adminHandler.CancelBooking)

		// POST /api/admin/scheduler/cleanup - Sweep holds and settle stale bookings now
		r.Post("/scheduler/cleanup", adminHandler.TriggerCleanup)

		// GET /api/admin/scheduler/status - Stale booking backlog
		r.Get("/scheduler/status", adminHandler.SchedulerStatus)

		// POST /api/admin/payments/poll - Poll every pending transaction
		r.Post("/payments/poll", adminHandler.PollPending)

		// POST /api/admin/payments/{transactionID}/poll - Poll one transaction
		r.Post("/payments/{transactionID}/poll", adminHandler.PollTransaction)
	})
}
