package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
)

var ErrUnknownPrompt = errors.New("no open wallet prompt with this id")

type walletCallback struct {
	token     string
	dismissed bool
}

// WalletAdapter drives a one-tap wallet. The provider prompt authenticates
// the shopper out of band and a callback delivers a payment-method token,
// which goes through the same confirm step as a card.
type WalletAdapter struct {
	method    domain.Method
	gateway   Gateway
	confirmer *IntentConfirmer

	mu      sync.Mutex
	pending map[string]chan walletCallback
}

func NewWalletAdapter(method domain.Method, g Gateway, c *IntentConfirmer) *WalletAdapter {
	return &WalletAdapter{
		method:    method,
		gateway:   g,
		confirmer: c,
		pending:   make(map[string]chan walletCallback),
	}
}

func (a *WalletAdapter) Method() domain.Method {
	return a.method
}

func (a *WalletAdapter) Available(ctx context.Context) (bool, error) {
	return a.gateway.Available(ctx, a.method.String())
}

func (a *WalletAdapter) Initiate(ctx context.Context, req Request) domain.Outcome {
	prompt, err := a.gateway.OpenWalletPrompt(ctx, a.method.String(), provider.PromptRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		IdempotencyKey: req.Token.String(),
	})
	if err != nil {
		return classify(ctx, "wallet prompt", false, err)
	}

	ch := make(chan walletCallback, 1)
	a.mu.Lock()
	a.pending[prompt.ID] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, prompt.ID)
		a.mu.Unlock()
	}()

	if req.OnPrompt != nil {
		req.OnPrompt(prompt.ID)
	}

	select {
	case <-ctx.Done():
		return domain.Cancelled{Reason: "wallet prompt cancelled"}
	case cb := <-ch:
		if cb.dismissed {
			return domain.Cancelled{Reason: "wallet prompt dismissed"}
		}
		return a.confirmer.Confirm(ctx, a.method, req, cb.token)
	}
}

// Deliver hands the token from the wallet callback to the waiting flow.
func (a *WalletAdapter) Deliver(promptID, token string) error {
	return a.resolve(promptID, walletCallback{token: token})
}

// Dismiss reports that the shopper closed the wallet prompt.
func (a *WalletAdapter) Dismiss(promptID string) error {
	return a.resolve(promptID, walletCallback{dismissed: true})
}

func (a *WalletAdapter) resolve(promptID string, cb walletCallback) error {
	a.mu.Lock()
	ch, ok := a.pending[promptID]
	if ok {
		delete(a.pending, promptID)
	}
	a.mu.Unlock()
	if !ok {
		return ErrUnknownPrompt
	}
	ch <- cb
	return nil
}
