package wire

import (
	"trip-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler) {
	// ==================== PAYMENT ROUTES ====================
	// POST /api/pay - Initiate payment for a booking
	r.Post("/api/pay", paymentHandler.InitiatePayment)

	// POST /api/pay/callback - Gateway result notification
	r.Post("/api/pay/callback", paymentHandler.Callback)

	// GET /api/pay/{transactionID} - Transaction detail
	r.Get("/api/pay/{transactionID}", paymentHandler.GetTransaction)
}
