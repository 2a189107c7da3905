package adaptor

import (
	"encoding/json"
	"net/http"
	"time"

	"trip-booking/internal/dto/request"
	"trip-booking/internal/dto/response"
	"trip-booking/internal/inventory"
	"trip-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SeatHandler struct {
	inv inventory.Service
	log *zap.Logger
}

func NewSeatHandler(inv inventory.Service, log *zap.Logger) *SeatHandler {
	return &SeatHandler{
		inv: inv,
		log: log.With(zap.String("handler", "seat")),
	}
}

// HoldSeats handles POST /api/seats/hold
func (h *SeatHandler) HoldSeats(w http.ResponseWriter, r *http.Request) {
	var req request.HoldSeatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	// The header form wins over the body field when both are set.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		idemKey = req.IdempotencyKey
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second

	locks, err := h.inv.Hold(r.Context(), req.TripID, req.Seats, ttl, idemKey)
	if err != nil {
		handleServiceError(h.log, w, err, "hold seats")
		return
	}

	utils.ResponseCreated(w, "success", response.HoldToResponse(locks))
}

// AttachBooking handles POST /api/seats/attach
func (h *SeatHandler) AttachBooking(w http.ResponseWriter, r *http.Request) {
	var req request.AttachBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	if err := h.inv.AttachBooking(r.Context(), req.LockGroupID, req.BookingID); err != nil {
		handleServiceError(h.log, w, err, "attach booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// GetHold handles GET /api/seats/hold/{groupID}
func (h *SeatHandler) GetHold(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		utils.ResponseBadRequest(w, "Lock group ID is required", nil)
		return
	}

	locks, err := h.inv.Locks(r.Context(), groupID)
	if err != nil {
		handleServiceError(h.log, w, err, "get hold")
		return
	}
	if len(locks) == 0 {
		utils.ResponseNotFound(w, "lock group not found")
		return
	}

	utils.ResponseSuccess(w, "success", response.HoldToResponse(locks))
}

// ReleaseHold handles DELETE /api/seats/hold/{groupID}
func (h *SeatHandler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		utils.ResponseBadRequest(w, "Lock group ID is required", nil)
		return
	}

	if err := h.inv.Release(r.Context(), groupID); err != nil {
		handleServiceError(h.log, w, err, "release hold")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
