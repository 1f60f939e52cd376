package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
	"github.com/google/uuid"
)

// Gateway is the provider API the adapters depend on.
type Gateway interface {
	Available(ctx context.Context, method string) (bool, error)
	CreateIntent(ctx context.Context, req provider.IntentRequest) (provider.Intent, error)
	ConfirmIntent(ctx context.Context, intentID string, req provider.ConfirmRequest) (provider.Confirmation, error)
	OpenWalletPrompt(ctx context.Context, method string, req provider.PromptRequest) (provider.Prompt, error)
	Transfer(ctx context.Context, req provider.TransferRequest) (provider.Transfer, error)
}

// Request is what the checkout session hands to the selected adapter.
type Request struct {
	Token       uuid.UUID
	AmountMinor int64
	Currency    string
	Contact     domain.Contact

	// PaymentMethodToken is the opaque token from the hosted card field, or
	// the payer handle for a local transfer.
	PaymentMethodToken string

	// OnPrompt is called with the prompt id once a wallet prompt is open.
	OnPrompt func(promptID string)
}

// Adapter is one payment provider's initiation contract. Initiate returns
// exactly one Outcome.
type Adapter interface {
	Method() domain.Method
	Available(ctx context.Context) (bool, error)
	Initiate(ctx context.Context, req Request) domain.Outcome
}

// chargeTimeout bounds a call that may take money. Such a call is detached
// from the flow's cancellation so its answer is always observed.
const chargeTimeout = 45 * time.Second

func chargeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), chargeTimeout)
}

// classify turns an error from the gateway into an outcome. A failed
// charging call is never Cancelled: unless the provider answered, the
// charge may have gone through and the outcome is Unsettled.
func classify(ctx context.Context, stage string, charging bool, err error) domain.Outcome {
	if !charging && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
		return domain.Cancelled{Reason: stage + " cancelled"}
	}
	var de *provider.DeclineError
	if errors.As(err, &de) {
		return domain.Declined{Reason: de.Message, Kind: domain.FailureProvider, Err: err}
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return domain.Declined{Reason: "payment provider temporarily unavailable", Kind: domain.FailureTransport, Err: err}
	}
	if charging {
		return domain.Declined{
			Reason:    "payment status unknown, retry to finish this payment",
			Kind:      domain.FailureTransport,
			Err:       err,
			Unsettled: true,
		}
	}
	return domain.Declined{Reason: stage + " failed", Kind: domain.FailureTransport, Err: err}
}
