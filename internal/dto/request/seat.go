package request

type HoldSeatsRequest struct {
	TripID         int64    `json:"trip_id" validate:"required,gt=0"`
	Seats          []string `json:"seats" validate:"required,min=1,dive,required"`
	TTLSeconds     int      `json:"ttl_seconds" validate:"omitempty,gt=0"`
	IdempotencyKey string   `json:"idempotency_key"`
}

type AttachBookingRequest struct {
	LockGroupID string `json:"lock_group_id" validate:"required,uuid4"`
	BookingID   string `json:"booking_id" validate:"required,uuid4"`
}
