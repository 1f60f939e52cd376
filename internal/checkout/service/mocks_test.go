package service

import (
	"context"
	"sync"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	cartservice "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/service"
	d "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/reconciler"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/adapter"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/provider"
	"github.com/shopspring/decimal"
)

// funcAdapter is an adapter whose outcome is decided by the test.
type funcAdapter struct {
	method    d.Method
	available bool

	mu       sync.Mutex
	requests []adapter.Request
	initiate func(ctx context.Context, req adapter.Request) d.Outcome
}

func (a *funcAdapter) Method() d.Method { return a.method }

func (a *funcAdapter) Available(context.Context) (bool, error) { return a.available, nil }

func (a *funcAdapter) Initiate(ctx context.Context, req adapter.Request) d.Outcome {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	fn := a.initiate
	a.mu.Unlock()
	return fn(ctx, req)
}

func (a *funcAdapter) calls() []adapter.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]adapter.Request(nil), a.requests...)
}

func confirmWith(ref string) func(context.Context, adapter.Request) d.Outcome {
	return func(context.Context, adapter.Request) d.Outcome { return d.Confirmed{Ref: ref} }
}

// stubGateway backs the real wallet and transfer adapters. Transfers are
// idempotent by key like the provider's.
type stubGateway struct {
	transferRef string
	prompts     int
	mu          sync.Mutex

	// transferGate holds a transfer after it is recorded until closed.
	transferGate    chan struct{}
	transferStarted chan struct{}
	// transferErr fails the next transfer after recording it.
	transferErr  error
	transferKeys []string
}

func (g *stubGateway) Available(context.Context, string) (bool, error) { return true, nil }

func (g *stubGateway) CreateIntent(_ context.Context, req provider.IntentRequest) (provider.Intent, error) {
	return provider.Intent{ID: "pi_" + req.IdempotencyKey[:8], AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

func (g *stubGateway) ConfirmIntent(_ context.Context, intentID string, _ provider.ConfirmRequest) (provider.Confirmation, error) {
	return provider.Confirmation{IntentID: intentID, Ref: "ch_" + intentID, Status: "succeeded"}, nil
}

func (g *stubGateway) OpenWalletPrompt(_ context.Context, method string, _ provider.PromptRequest) (provider.Prompt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts++
	return provider.Prompt{ID: method + "-prompt", Method: method}, nil
}

func (g *stubGateway) Transfer(ctx context.Context, req provider.TransferRequest) (provider.Transfer, error) {
	g.mu.Lock()
	g.transferKeys = append(g.transferKeys, req.IdempotencyKey)
	gate, err := g.transferGate, g.transferErr
	g.transferErr = nil
	g.mu.Unlock()

	select {
	case g.transferStarted <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return provider.Transfer{}, ctx.Err()
		}
	}
	if err != nil {
		return provider.Transfer{}, err
	}
	return provider.Transfer{Ref: g.transferRef, Status: "completed"}, nil
}

// charges counts distinct idempotency keys, which is what the provider bills.
func (g *stubGateway) charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[string]struct{})
	for _, k := range g.transferKeys {
		seen[k] = struct{}{}
	}
	return len(seen)
}

type mockReconciler struct {
	mu       sync.Mutex
	result   reconciler.Result
	requests []reconciler.Request
}

func (m *mockReconciler) Reconcile(_ context.Context, req reconciler.Request) reconciler.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result
}

func (m *mockReconciler) calls() []reconciler.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reconciler.Request(nil), m.requests...)
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

var productX = cartdomain.Product{ID: "X", Name: "Shirt X", Price: decimal.NewFromInt(500)}

func validFields() d.Fields {
	return d.Fields{
		Contact:  d.Contact{Email: "ada@example.com", FullName: "Ada Lovelace", Phone: "+237600000000"},
		Shipping: d.Shipping{Line1: "1 Main St", City: "Douala", PostalCode: "0000", Country: "CM"},
	}
}

type fixture struct {
	slot     *cache.MemorySlot
	carts    *cartservice.CartService
	rec      *mockReconciler
	gateway  *stubGateway
	card     *funcAdapter
	registry *adapter.Registry
	svc      *CheckoutService
}

func newFixture(opts ...Option) *fixture {
	gw := &stubGateway{transferRef: "T-1"}
	card := &funcAdapter{method: d.MethodCard, available: true, initiate: confirmWith("ch_card")}
	confirmer := adapter.NewIntentConfirmer(gw)
	registry := adapter.NewRegistry(nil,
		card,
		adapter.NewWalletAdapter(d.MethodWalletA, gw, confirmer),
		adapter.NewWalletAdapter(d.MethodWalletB, gw, confirmer),
		adapter.NewTransferAdapter(gw),
	)
	slot := cache.NewMemorySlot()
	carts := cartservice.NewCartService(slot, nil, cartservice.WithClock(fixedClock))
	rec := &mockReconciler{result: reconciler.Result{OrderID: "O-1"}}
	opts = append([]Option{WithClock(fixedClock)}, opts...)

	return &fixture{
		slot:     slot,
		carts:    carts,
		rec:      rec,
		gateway:  gw,
		card:     card,
		registry: registry,
		svc:      NewCheckoutService(carts, registry, rec, nil, opts...),
	}
}

func (f *fixture) addToCart(sessionID string, p cartdomain.Product, qty int) {
	st, err := f.carts.Store(context.Background(), sessionID)
	if err != nil {
		panic(err)
	}
	if _, err := st.Add(context.Background(), p, qty, "", ""); err != nil {
		panic(err)
	}
}

func (f *fixture) cart(sessionID string) cartdomain.Cart {
	c, err := f.carts.Cart(context.Background(), sessionID)
	if err != nil {
		panic(err)
	}
	return c
}
