package request

type CreateBookingRequest struct {
	LockGroupID string `json:"lock_group_id" validate:"required,uuid4"`
}

type InitiatePaymentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid4"`
	Method    string `json:"method" validate:"required,oneof=CARD BANK_TRANSFER WALLET"`
}

// PaymentCallbackRequest is the provider's redirect/IPN payload reduced to
// the fields the reconciliation path needs.
type PaymentCallbackRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Code          string `json:"code" validate:"required"`
	Message       string `json:"message"`
}
