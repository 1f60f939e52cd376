package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNotRegistered = errors.New("payment method not registered")

// Registry holds one adapter per method.
type Registry struct {
	adapters map[domain.Method]Adapter
	wallets  []*WalletAdapter
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger, adapters ...Adapter) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{adapters: make(map[domain.Method]Adapter, len(adapters)), log: log}
	for _, a := range adapters {
		r.adapters[a.Method()] = a
		if w, ok := a.(*WalletAdapter); ok {
			r.wallets = append(r.wallets, w)
		}
	}
	return r
}

// NewDefaultRegistry wires the four storefront adapters to one gateway.
func NewDefaultRegistry(g Gateway, log *zap.Logger) *Registry {
	confirmer := NewIntentConfirmer(g)
	return NewRegistry(log,
		NewCardAdapter(g, confirmer),
		NewWalletAdapter(domain.MethodWalletA, g, confirmer),
		NewWalletAdapter(domain.MethodWalletB, g, confirmer),
		NewTransferAdapter(g),
	)
}

func (r *Registry) Get(m domain.Method) (Adapter, error) {
	a, ok := r.adapters[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, m)
	}
	return a, nil
}

// Available checks every adapter concurrently and returns the usable methods
// in display order. A failed check hides the method.
func (r *Registry) Available(ctx context.Context) []domain.Method {
	results := make([]bool, len(domain.Methods))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range domain.Methods {
		i, m := i, m
		a, ok := r.adapters[m]
		if !ok {
			continue
		}
		g.Go(func() error {
			ok, err := a.Available(gctx)
			if err != nil {
				r.log.Warn("availability check failed", zap.String("method", m.String()), zap.Error(err))
				return nil
			}
			results[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Method
	for i, m := range domain.Methods {
		if results[i] {
			out = append(out, m)
		}
	}
	return out
}

// IsAvailable checks a single method.
func (r *Registry) IsAvailable(ctx context.Context, m domain.Method) (bool, error) {
	a, err := r.Get(m)
	if err != nil {
		return false, err
	}
	return a.Available(ctx)
}

// DeliverWallet routes a wallet callback to the adapter holding the prompt.
func (r *Registry) DeliverWallet(promptID, token string, dismissed bool) error {
	for _, w := range r.wallets {
		var err error
		if dismissed {
			err = w.Dismiss(promptID)
		} else {
			err = w.Deliver(promptID, token)
		}
		if !errors.Is(err, ErrUnknownPrompt) {
			return err
		}
	}
	return ErrUnknownPrompt
}
