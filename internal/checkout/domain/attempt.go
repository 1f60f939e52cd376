package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var IllegalTransitionError = errors.New("illegal transition of payment attempt status")

// PaymentAttempt is one idempotency-tokened submission within a checkout
// session. It lives only as long as the session.
type PaymentAttempt struct {
	Token           uuid.UUID     `json:"token"`
	Method          Method        `json:"method"`
	Status          AttemptStatus `json:"status"`
	Snapshot        CartSnapshot  `json:"snapshot"`
	AmountMinor     int64         `json:"amount_minor"`
	Currency        string        `json:"currency"`
	ConfirmationRef string        `json:"confirmation_ref,omitempty"`
	OrderID         string        `json:"order_id,omitempty"`
	Declines        int           `json:"declines"`
	LastReason      string        `json:"last_reason,omitempty"`
	LastFailure     FailureKind   `json:"last_failure,omitempty"`
	Reconcile       bool          `json:"needs_reconciliation"`
	Unsettled       bool          `json:"unsettled"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func NewPaymentAttempt(method Method, snapshot CartSnapshot, now time.Time) (*PaymentAttempt, error) {
	amount, err := snapshot.AmountMinor()
	if err != nil {
		return nil, err
	}
	return &PaymentAttempt{
		Token:       uuid.New(),
		Method:      method,
		Status:      AttemptInitiated,
		Snapshot:    snapshot.Clone(),
		AmountMinor: amount,
		Currency:    snapshot.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (a *PaymentAttempt) Transition(to AttemptStatus, now time.Time) error {
	if !CanTransitionTo(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}

// RecordDecline notes a retryable failure; the attempt keeps its token. An
// unsettled failure pins the attempt until the provider answers for its
// token, so it must be retried rather than replaced.
func (a *PaymentAttempt) RecordDecline(d Declined, now time.Time) {
	switch {
	case d.Unsettled:
		a.Unsettled = true
	case d.Kind == FailureProvider:
		a.Unsettled = false
	}
	a.Declines++
	a.LastReason = d.Reason
	a.LastFailure = d.Kind
	a.UpdatedAt = now
}
