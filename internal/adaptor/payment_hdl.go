package adaptor

import (
	"encoding/json"
	"net/http"

	"trip-booking/internal/dto/request"
	"trip-booking/internal/usecase"
	"trip-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// InitiatePayment handles POST /api/pay
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req request.InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	txn, err := h.service.InitiatePayment(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "initiate payment")
		return
	}

	utils.ResponseCreated(w, "success", txn)
}

// Callback handles POST /api/pay/callback. The gateway retries on
// non-2xx, so settled transactions still answer 200.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	txn, err := h.service.HandleCallback(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "payment callback")
		return
	}

	utils.ResponseSuccess(w, "success", txn)
}

// GetTransaction handles GET /api/pay/{transactionID}
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		utils.ResponseBadRequest(w, "Transaction ID is required", nil)
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), transactionID)
	if err != nil {
		handleServiceError(h.log, w, err, "get transaction")
		return
	}

	utils.ResponseSuccess(w, "success", txn)
}
