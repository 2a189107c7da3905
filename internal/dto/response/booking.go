package response

import (
	"time"

	"trip-booking/internal/data/entity"
)

type HoldResponse struct {
	LockGroupID string    `json:"lock_group_id"`
	TripID      int64     `json:"trip_id"`
	Seats       []string  `json:"seats"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type BookingResponse struct {
	ID          string               `json:"id"`
	Code        string               `json:"code"`
	TripID      int64                `json:"trip_id"`
	LockGroupID string               `json:"lock_group_id"`
	Seats       []string             `json:"seats,omitempty"`
	Quantity    int                  `json:"quantity"`
	TotalAmount float64              `json:"total_amount"`
	Status      entity.BookingStatus `json:"status"`
	ExpiresAt   time.Time            `json:"expires_at"`
	CreatedAt   time.Time            `json:"created_at"`
}

type BookingDetailResponse struct {
	BookingResponse
	Transactions []PaymentResponse `json:"transactions"`
}

type PaymentResponse struct {
	TransactionID string               `json:"transaction_id"`
	BookingID     string               `json:"booking_id"`
	OrderRef      string               `json:"order_ref"`
	Method        string               `json:"method"`
	Status        entity.PaymentStatus `json:"status"`
	Amount        float64              `json:"amount"`
	GatewayNote   string               `json:"gateway_note,omitempty"`
	PayURL        string               `json:"pay_url,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

type SchedulerStatusResponse struct {
	ExpiredAwaitingPayment int64 `json:"expired_awaiting_payment"`
}

type CleanupResponse struct {
	ExpiredBookings int `json:"expired_bookings"`
	ReleasedGroups  int `json:"released_groups"`
}

// Helper converters

func HoldToResponse(locks []entity.SeatLock) *HoldResponse {
	resp := &HoldResponse{}
	if len(locks) == 0 {
		return resp
	}
	resp.LockGroupID = locks[0].GroupID
	resp.TripID = locks[0].TripID
	resp.ExpiresAt = locks[0].ExpiresAt
	for _, l := range locks {
		resp.Seats = append(resp.Seats, l.SeatNo)
	}
	return resp
}

func BookingToResponse(booking *entity.Booking, seats []string) *BookingResponse {
	return &BookingResponse{
		ID:          booking.ID.String(),
		Code:        booking.Code,
		TripID:      booking.TripID,
		LockGroupID: booking.LockGroupID,
		Seats:       seats,
		Quantity:    booking.Quantity,
		TotalAmount: booking.TotalAmount,
		Status:      booking.Status,
		ExpiresAt:   booking.ExpiresAt,
		CreatedAt:   booking.CreatedAt,
	}
}

func PaymentToResponse(txn *entity.PaymentTransaction) PaymentResponse {
	return PaymentResponse{
		TransactionID: txn.TransactionID,
		BookingID:     txn.BookingID.String(),
		OrderRef:      txn.OrderRef,
		Method:        txn.Method,
		Status:        txn.Status,
		Amount:        txn.Amount,
		GatewayNote:   txn.GatewayNote,
		CreatedAt:     txn.CreatedAt,
	}
}
