package service

import (
	"context"
	"sync"
	"time"

	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	d "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/reconciler"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/adapter"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/logger"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/service"

// Carts is the live cart the checkout reads at entry and pay time and
// clears after a confirmed payment.
type Carts interface {
	Cart(ctx context.Context, sessionID string) (cartdomain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type Payments interface {
	Get(m d.Method) (adapter.Adapter, error)
	Available(ctx context.Context) []d.Method
	IsAvailable(ctx context.Context, m d.Method) (bool, error)
	DeliverWallet(promptID, token string, dismissed bool) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, req reconciler.Request) reconciler.Result
}

type Option func(*CheckoutService)

func WithCurrency(currency string) Option {
	return func(s *CheckoutService) { s.currency = currency }
}

// WithMaxDeclines sets how many declines one attempt absorbs before it fails
// and the next payment starts with a fresh token.
func WithMaxDeclines(n int) Option {
	return func(s *CheckoutService) { s.maxDeclines = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CheckoutService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *CheckoutService) { s.now = now }
}

// CheckoutService owns one checkout session per shopper session.
type CheckoutService struct {
	carts      Carts
	payments   Payments
	reconciler Reconciler
	log        *zap.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time

	currency    string
	maxDeclines int

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewCheckoutService(carts Carts, payments Payments, rec Reconciler, log *zap.Logger, opts ...Option) *CheckoutService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &CheckoutService{
		carts:       carts,
		payments:    payments,
		reconciler:  rec,
		log:         log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		currency:    "USD",
		maxDeclines: 3,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enter starts checkout. An empty cart sends the shopper back to the catalog
// and a missing identity asks for sign-in; neither is an error and neither
// touches the cart.
func (s *CheckoutService) Enter(ctx context.Context, sessionID, userID string) (View, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("session_id", sessionID))

	cart, err := s.carts.Cart(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	if cart.IsEmpty() {
		return View{SessionID: sessionID, State: d.StateRedirectCatalog}, nil
	}
	if userID == "" {
		return View{SessionID: sessionID, State: d.StateAuthRequired}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var fields d.Fields
	if prev, ok := s.sessions[sessionID]; ok {
		if prev.inFlight() || prev.unsettled() {
			return prev.View(), nil
		}
		fields = prev.fieldsCopy()
		prev.close()
	}

	sess := newSession(s, sessionID, userID, d.NewCartSnapshot(cart, s.currency, fields, s.now()), fields)
	s.sessions[sessionID] = sess
	log.Info("checkout entered", zap.Int("lines", len(cart.Items)), zap.String("total", cart.TotalPrice.String()))
	return sess.View(), nil
}

func (s *CheckoutService) session(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *CheckoutService) View(sessionID string) (View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.View(), nil
}

func (s *CheckoutService) SetFields(ctx context.Context, sessionID string, f d.Fields) (View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.SetFields(f)
}

// Methods lists the payment methods usable right now.
func (s *CheckoutService) Methods(ctx context.Context, sessionID string) ([]d.Method, error) {
	if _, err := s.session(sessionID); err != nil {
		return nil, err
	}
	return s.payments.Available(ctx), nil
}

func (s *CheckoutService) SelectMethod(ctx context.Context, sessionID string, m d.Method) (View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.SelectMethod(ctx, m)
}

// Pay runs the selected adapter and blocks until its outcome is routed.
func (s *CheckoutService) Pay(ctx context.Context, sessionID string, req PayRequest) (View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.Pay(ctx, req)
}

// Start runs the selected adapter and returns as soon as the outcome is
// routed or a wallet prompt is waiting for the shopper.
func (s *CheckoutService) Start(ctx context.Context, sessionID string, req PayRequest) (View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.Start(ctx, req)
}

func (s *CheckoutService) WalletCallback(ctx context.Context, sessionID, promptID, token string, dismissed bool) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return sess.WalletCallback(promptID, token, dismissed)
}

func (s *CheckoutService) Receipt(sessionID string) (d.Receipt, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return d.Receipt{}, err
	}
	return sess.Receipt()
}

// Abandon is the shopper navigating away. Any in-flight flow is cancelled
// and the cart is left as it is.
func (s *CheckoutService) Abandon(ctx context.Context, sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if err := sess.Abandon(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.sessions[sessionID] == sess {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	return nil
}

// RunReaper abandons sessions idle for longer than ttl until ctx ends.
func (s *CheckoutService) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireSessions(ctx, ttl)
		case <-ctx.Done():
			return
		}
	}
}

func (s *CheckoutService) expireSessions(ctx context.Context, ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if !sess.idleSince(cutoff) {
			continue
		}
		if sess.unsettled() {
			s.log.Warn("idle checkout session kept, its payment is unsettled", zap.String("session_id", id))
			continue
		}
		idle = append(idle, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range idle {
		_ = sess.Abandon(ctx)
		s.log.Info("idle checkout session expired", zap.String("session_id", sess.id))
	}
	return len(idle)
}
