package http

import (
	"encoding/json"
	"errors"
	"net/http"

	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	cartservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/service"
	catalogrepo "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/catalog/repository"
	checkoutdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	checkoutservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/service"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/adapter"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	var fieldErrs *checkoutdomain.FieldErrors
	if errors.As(err, &fieldErrs) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "contact and shipping details are incomplete",
			Code:    "fields_incomplete",
			Details: fieldErrs.Missing,
		})
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, cartdomain.ErrLineNotFound):
		httpStatus, code = http.StatusNotFound, "line_not_found"
	case errors.Is(err, catalogrepo.ErrProductNotFound):
		httpStatus, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, cartdomain.ErrVariantRequired):
		httpStatus, code = http.StatusUnprocessableEntity, "variant_required"
	case errors.Is(err, cartdomain.ErrUnknownVariant):
		httpStatus, code = http.StatusUnprocessableEntity, "unknown_variant"
	case errors.Is(err, cartdomain.ErrQuantityLimit):
		httpStatus, code = http.StatusUnprocessableEntity, "quantity_limit"
	case errors.Is(err, cartservice.ErrSlotUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "cart_unavailable"
	case errors.Is(err, checkoutservice.ErrSessionNotFound):
		httpStatus, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, checkoutservice.ErrNoReceipt):
		httpStatus, code = http.StatusNotFound, "no_receipt"
	case errors.Is(err, checkoutservice.ErrSessionClosed):
		httpStatus, code = http.StatusConflict, "session_closed"
	case errors.Is(err, checkoutservice.ErrBusy):
		httpStatus, code = http.StatusConflict, "payment_in_progress"
	case errors.Is(err, checkoutservice.ErrPaymentUnsettled):
		httpStatus, code = http.StatusConflict, "payment_unsettled"
	case errors.Is(err, checkoutservice.ErrCartEmptied):
		httpStatus, code = http.StatusConflict, "cart_emptied"
	case errors.Is(err, checkoutservice.ErrStalePrompt), errors.Is(err, adapter.ErrUnknownPrompt):
		httpStatus, code = http.StatusConflict, "stale_prompt"
	case errors.Is(err, checkoutservice.ErrFieldsIncomplete):
		httpStatus, code = http.StatusUnprocessableEntity, "fields_incomplete"
	case errors.Is(err, checkoutservice.ErrNoMethodSelected):
		httpStatus, code = http.StatusUnprocessableEntity, "no_method_selected"
	case errors.Is(err, checkoutservice.ErrMethodUnavailable):
		httpStatus, code = http.StatusUnprocessableEntity, "method_unavailable"
	case errors.Is(err, checkoutdomain.ErrUnknownMethod), errors.Is(err, adapter.ErrNotRegistered):
		httpStatus, code = http.StatusBadRequest, "unknown_method"
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
