package adapter

import (
	"context"
	"strings"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
)

// CardAdapter confirms a payment made with the provider-hosted card field.
// The card details never reach this service; only the field's token does.
type CardAdapter struct {
	gateway   Gateway
	confirmer *IntentConfirmer
}

func NewCardAdapter(g Gateway, c *IntentConfirmer) *CardAdapter {
	return &CardAdapter{gateway: g, confirmer: c}
}

func (a *CardAdapter) Method() domain.Method {
	return domain.MethodCard
}

func (a *CardAdapter) Available(ctx context.Context) (bool, error) {
	return a.gateway.Available(ctx, domain.MethodCard.String())
}

func (a *CardAdapter) Initiate(ctx context.Context, req Request) domain.Outcome {
	token := strings.TrimSpace(req.PaymentMethodToken)
	if token == "" {
		return domain.Declined{Reason: "card details are incomplete", Kind: domain.FailureValidation}
	}
	return a.confirmer.Confirm(ctx, domain.MethodCard, req, token)
}
