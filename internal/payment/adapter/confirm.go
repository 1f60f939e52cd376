package adapter

import (
	"context"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
)

// IntentConfirmer is the shared second step of the card and wallet flows:
// request a server-minted intent for the attempt, then confirm it with the
// payment-method token. Only a successful confirmation yields Confirmed.
type IntentConfirmer struct {
	gateway Gateway
}

func NewIntentConfirmer(g Gateway) *IntentConfirmer {
	return &IntentConfirmer{gateway: g}
}

func (c *IntentConfirmer) Confirm(ctx context.Context, method domain.Method, req Request, paymentMethodToken string) domain.Outcome {
	key := req.Token.String()

	intent, err := c.gateway.CreateIntent(ctx, provider.IntentRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Method:         method.String(),
		IdempotencyKey: key,
		ReceiptEmail:   req.Contact.Email,
	})
	if err != nil {
		return classify(ctx, "intent creation", false, err)
	}

	// nothing is charged before the confirm call
	if ctx.Err() != nil {
		return domain.Cancelled{Reason: "confirmation cancelled"}
	}

	callCtx, cancel := chargeContext(ctx)
	defer cancel()
	conf, err := c.gateway.ConfirmIntent(callCtx, intent.ID, provider.ConfirmRequest{
		PaymentMethodToken: paymentMethodToken,
		IdempotencyKey:     key,
	})
	if err != nil {
		return classify(ctx, "confirmation", true, err)
	}
	return domain.Confirmed{Ref: conf.Ref}
}
