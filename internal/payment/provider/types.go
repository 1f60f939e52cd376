package provider

import (
	"errors"
	"fmt"
)

var ErrIntentNotFound = errors.New("payment intent not found")

// DeclineError is a business rejection from the provider. It is not a
// transport failure and never trips the circuit breaker.
type DeclineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("declined (%s): %s", e.Code, e.Message)
}

type IntentRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	IdempotencyKey string `json:"idempotency_key"`
	ReceiptEmail   string `json:"receipt_email,omitempty"`
}

type Intent struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type ConfirmRequest struct {
	PaymentMethodToken string `json:"payment_method_token"`
	IdempotencyKey     string `json:"idempotency_key"`
}

type Confirmation struct {
	IntentID string `json:"intent_id"`
	Ref      string `json:"ref"`
	Status   string `json:"status"`
}

type PromptRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

type Prompt struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

type TransferRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	Payer          string `json:"payer"`
	IdempotencyKey string `json:"idempotency_key"`
}

type Transfer struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

type Availability struct {
	Method    string `json:"method"`
	Available bool   `json:"available"`
}

// errorBody is the provider's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
