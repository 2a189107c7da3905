package entity

import (
	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusInitiated  PaymentStatus = "INITIATED"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// PaymentTransaction records one payment attempt against a booking.
// TransactionID is the reference sent to the gateway; OrderRef is the
// booking code. GatewayNote accumulates human-readable reconciliation
// detail (e.g. why a transaction was failed after a race against booking
// expiry) so follow-up refunds can be driven from the record alone.
type PaymentTransaction struct {
	Base
	TransactionID string        `db:"transaction_id"`
	BookingID     uuid.UUID     `db:"booking_id"`
	OrderRef      string        `db:"order_ref"`
	Method        string        `db:"method"`
	Status        PaymentStatus `db:"status"`
	Amount        float64       `db:"amount"`
	GatewayNote   string        `db:"gateway_note"`
	PollAttempts  int           `db:"poll_attempts"`
}

// IsFinal reports whether the transaction reached a state that only a
// refund transition may leave.
func (s PaymentStatus) IsFinal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsPending reports whether the transaction is still in flight and worth
// polling the gateway for.
func (s PaymentStatus) IsPending() bool {
	return s == PaymentStatusInitiated || s == PaymentStatusProcessing
}
