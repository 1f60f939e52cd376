package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	checkoutdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	checkoutservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/service"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Checkout is the part of the checkout service the HTTP layer drives.
type Checkout interface {
	Enter(ctx context.Context, sessionID, userID string) (checkoutservice.View, error)
	View(sessionID string) (checkoutservice.View, error)
	SetFields(ctx context.Context, sessionID string, f checkoutdomain.Fields) (checkoutservice.View, error)
	Methods(ctx context.Context, sessionID string) ([]checkoutdomain.Method, error)
	SelectMethod(ctx context.Context, sessionID string, m checkoutdomain.Method) (checkoutservice.View, error)
	Start(ctx context.Context, sessionID string, req checkoutservice.PayRequest) (checkoutservice.View, error)
	WalletCallback(ctx context.Context, sessionID, promptID, token string, dismissed bool) error
	Receipt(sessionID string) (checkoutdomain.Receipt, error)
	Abandon(ctx context.Context, sessionID string) error
}

const outcomeDeclined = "declined"

type CheckoutHandler struct {
	checkout Checkout
	timeout  time.Duration
	// payWait bounds how long POST /checkout/pay holds the request open.
	// The payment itself keeps running past it.
	payWait time.Duration
}

func NewCheckoutHandler(checkout Checkout, timeout, payWait time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
		payWait:  payWait,
	}
}

type SelectMethodRequestDTO struct {
	Method string `json:"method"`
}

type WalletCallbackRequestDTO struct {
	Token     string `json:"token,omitempty"`
	Dismissed bool   `json:"dismissed"`
}

type MethodsResponse struct {
	Methods []MethodDTO `json:"methods"`
}

type MethodDTO struct {
	Method      checkoutdomain.Method `json:"method"`
	SubmitLabel string                `json:"submit_label"`
}

type FieldsResponse struct {
	checkoutservice.View
	Missing []string `json:"missing"`
}

type ReceiptResponse struct {
	checkoutdomain.Receipt
	DisplayRef string `json:"display_ref"`
}

func (h *CheckoutHandler) Enter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.checkout.Enter(ctx, getSessionID(r.Context()), getUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	switch view.State {
	case checkoutdomain.StateAuthRequired:
		respondJSON(w, http.StatusUnauthorized, view)
	default:
		respondJSON(w, http.StatusOK, view)
	}
}

func (h *CheckoutHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := h.checkout.View(getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CheckoutHandler) SetFields(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkoutdomain.Fields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view, err := h.checkout.SetFields(ctx, getSessionID(r.Context()), req)
	var fieldErrs *checkoutdomain.FieldErrors
	if errors.As(err, &fieldErrs) {
		// fields are kept; the page shows what is still missing
		respondJSON(w, http.StatusUnprocessableEntity, FieldsResponse{View: view, Missing: fieldErrs.Missing})
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CheckoutHandler) Methods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	methods, err := h.checkout.Methods(ctx, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := MethodsResponse{Methods: make([]MethodDTO, len(methods))}
	for i, m := range methods {
		resp.Methods[i] = MethodDTO{Method: m, SubmitLabel: m.SubmitLabel()}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectMethodRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	m, err := checkoutdomain.ParseMethod(req.Method)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view, err := h.checkout.SelectMethod(ctx, getSessionID(r.Context()), m)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Pay submits the selected method. The response is 200 once the outcome is
// routed, 402 when the provider declined, and 202 while a wallet prompt is
// waiting or the payment outlives the request.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.payWait)
	defer cancel()

	var req checkoutservice.PayRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	view, err := h.checkout.Start(ctx, getSessionID(r.Context()), req)
	if errors.Is(err, context.DeadlineExceeded) {
		respondJSON(w, http.StatusAccepted, view)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	switch {
	case view.Busy:
		respondJSON(w, http.StatusAccepted, view)
	case view.LastOutcome != nil && view.LastOutcome.Outcome == outcomeDeclined:
		respondJSON(w, http.StatusPaymentRequired, view)
	default:
		respondJSON(w, http.StatusOK, view)
	}
}

func (h *CheckoutHandler) WalletCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	promptID := chi.URLParam(r, "prompt_id")

	var req WalletCallbackRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !req.Dismissed && req.Token == "" {
		respondError(w, http.StatusBadRequest, "invalid_token", "token is required unless the prompt was dismissed")
		return
	}

	sessionID := getSessionID(r.Context())
	if err := h.checkout.WalletCallback(ctx, sessionID, promptID, req.Token, req.Dismissed); err != nil {
		handleServiceError(w, err)
		return
	}
	logger.FromContext(r.Context(), nil).Debug("wallet callback delivered", zap.String("prompt_id", promptID))
	w.WriteHeader(http.StatusAccepted)
}

func (h *CheckoutHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.checkout.Receipt(getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ReceiptResponse{Receipt: receipt, DisplayRef: receipt.DisplayRef()})
}

func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.checkout.Abandon(ctx, getSessionID(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
