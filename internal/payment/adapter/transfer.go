package adapter

import (
	"context"
	"strings"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
)

// TransferAdapter pays by local mobile transfer. The provider's endpoint
// answers synchronously and its reference is already a confirmation.
type TransferAdapter struct {
	gateway Gateway
}

func NewTransferAdapter(g Gateway) *TransferAdapter {
	return &TransferAdapter{gateway: g}
}

func (a *TransferAdapter) Method() domain.Method {
	return domain.MethodLocalTransfer
}

func (a *TransferAdapter) Available(ctx context.Context) (bool, error) {
	return a.gateway.Available(ctx, domain.MethodLocalTransfer.String())
}

func (a *TransferAdapter) Initiate(ctx context.Context, req Request) domain.Outcome {
	payer := strings.TrimSpace(req.PaymentMethodToken)
	if payer == "" {
		payer = strings.TrimSpace(req.Contact.Phone)
	}
	if payer == "" {
		return domain.Declined{Reason: "a mobile number is required for transfer", Kind: domain.FailureValidation}
	}

	if ctx.Err() != nil {
		return domain.Cancelled{Reason: "transfer cancelled"}
	}

	callCtx, cancel := chargeContext(ctx)
	defer cancel()
	t, err := a.gateway.Transfer(callCtx, provider.TransferRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Payer:          payer,
		IdempotencyKey: req.Token.String(),
	})
	if err != nil {
		return classify(ctx, "transfer", true, err)
	}
	return domain.Confirmed{Ref: t.Ref}
}
