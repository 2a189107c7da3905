package adaptor

import (
	"net/http"

	"trip-booking/internal/dto/request"
	"trip-booking/internal/dto/response"
	"trip-booking/internal/usecase"
	"trip-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler exposes the operational surface: listing bookings and
// driving the scheduler and reconciler by hand.
type AdminHandler struct {
	booking    usecase.BookingService
	scheduler  *usecase.Scheduler
	reconciler *usecase.Reconciler
	log        *zap.Logger
}

func NewAdminHandler(booking usecase.BookingService, scheduler *usecase.Scheduler, reconciler *usecase.Reconciler, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		booking:    booking,
		scheduler:  scheduler,
		reconciler: reconciler,
		log:        log.With(zap.String("handler", "admin")),
	}
}

// ListBookings handles GET /api/admin/bookings
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	bookings, err := h.booking.ListBookings(r.Context(), req)
	if err != nil {
		handleServiceError(h.log, w, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// ConfirmBooking handles PUT /api/admin/bookings/{id}/confirm. The normal
// path is the payment callback; this backs manual settlement.
func (h *AdminHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		utils.ResponseBadRequest(w, "Booking ID is required", nil)
		return
	}

	if err := h.booking.ConfirmBooking(r.Context(), bookingID); err != nil {
		handleServiceError(h.log, w, err, "confirm booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// CancelBooking handles PUT /api/admin/bookings/{id}/cancel
func (h *AdminHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		utils.ResponseBadRequest(w, "Booking ID is required", nil)
		return
	}

	if err := h.booking.CancelBooking(r.Context(), bookingID); err != nil {
		handleServiceError(h.log, w, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// TriggerCleanup handles POST /api/admin/scheduler/cleanup
func (h *AdminHandler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	expired, released, err := h.scheduler.TriggerCleanup(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "trigger cleanup")
		return
	}

	utils.ResponseSuccess(w, "success", response.CleanupResponse{
		ExpiredBookings: expired,
		ReleasedGroups:  released,
	})
}

// SchedulerStatus handles GET /api/admin/scheduler/status
func (h *AdminHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.scheduler.ExpiredCount(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "scheduler status")
		return
	}

	utils.ResponseSuccess(w, "success", response.SchedulerStatusResponse{
		ExpiredAwaitingPayment: count,
	})
}

// PollTransaction handles POST /api/admin/payments/{transactionID}/poll
func (h *AdminHandler) PollTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		utils.ResponseBadRequest(w, "Transaction ID is required", nil)
		return
	}

	if err := h.reconciler.PollTransaction(r.Context(), transactionID); err != nil {
		handleServiceError(h.log, w, err, "poll transaction")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// PollPending handles POST /api/admin/payments/poll
func (h *AdminHandler) PollPending(w http.ResponseWriter, r *http.Request) {
	polled, err := h.reconciler.PollAllPending(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "poll pending payments")
		return
	}

	utils.ResponseSuccess(w, "success", map[string]int{"polled": polled})
}
