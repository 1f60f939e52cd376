package service

import (
	"context"
	"fmt"
	"time"

	d "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/payment/adapter"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PayRequest struct {
	// PaymentMethodToken is the hosted card field's token or, for a local
	// transfer, the payer's mobile number.
	PaymentMethodToken string `json:"payment_method_token,omitempty"`
}

// Pay starts the selected adapter and waits until its outcome is routed.
func (s *Session) Pay(ctx context.Context, req PayRequest) (View, error) {
	f, err := s.begin(ctx, req)
	if err != nil {
		return View{}, err
	}
	select {
	case <-f.done:
		return s.View(), nil
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
}

// Start is Pay that also returns once a wallet prompt is open.
func (s *Session) Start(ctx context.Context, req PayRequest) (View, error) {
	f, err := s.begin(ctx, req)
	if err != nil {
		return View{}, err
	}
	select {
	case <-f.done:
	case <-f.prompted:
	case <-ctx.Done():
		return s.View(), ctx.Err()
	}
	return s.View(), nil
}

func (s *Session) begin(ctx context.Context, req PayRequest) (*flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closedLocked() {
		return nil, ErrSessionClosed
	}
	if s.flow != nil {
		return nil, ErrBusy
	}
	if err := s.fields.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFieldsIncomplete, err)
	}
	if s.method == "" {
		return nil, ErrNoMethodSelected
	}
	adp, err := s.svc.payments.Get(s.method)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, s.svc.log).With(zap.String("session_id", s.id), zap.String("method", s.method.String()))

	cart, err := s.svc.carts.Cart(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if cart.IsEmpty() {
		s.state = d.StateAborted
		s.abandonAttemptLocked()
		log.Warn("cart emptied before payment, checkout aborted")
		return nil, ErrCartEmptied
	}

	now := s.svc.now()
	snap := d.NewCartSnapshot(cart, s.svc.currency, s.fields, now)
	reuse := s.attempt != nil && !s.attempt.Status.IsTerminal() && s.attempt.Method == s.method && sameCharge(s.attempt.Snapshot, snap)
	if !reuse && s.unsettledLocked() {
		log.Warn("payment left unsettled, refusing a new attempt", zap.String("token", s.attempt.Token.String()))
		return nil, ErrPaymentUnsettled
	}
	if !reuse {
		s.abandonAttemptLocked()
		a, err := d.NewPaymentAttempt(s.method, snap, now)
		if err != nil {
			return nil, err
		}
		s.attempt = a
		log.Info("payment attempt created", zap.String("token", a.Token.String()), zap.Int64("amount_minor", a.AmountMinor))
	} else {
		log.Info("retrying payment attempt", zap.String("token", s.attempt.Token.String()), zap.Int("declines", s.attempt.Declines))
	}

	flowCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flow{
		method:   s.method,
		attempt:  s.attempt,
		cancel:   cancel,
		done:     make(chan struct{}),
		prompted: make(chan struct{}, 1),
	}
	s.flow = f
	s.state = d.StateProcessing
	s.last = nil
	s.touchLocked()

	go s.run(flowCtx, f, adp, req)
	return f, nil
}

// sameCharge reports whether a retry would charge the same thing, so the
// attempt and its token can be reused.
func sameCharge(a, b d.CartSnapshot) bool {
	if a.Currency != b.Currency || !a.TotalAmount.Equal(b.TotalAmount) || len(a.Items) != len(b.Items) {
		return false
	}
	if a.Contact != b.Contact || a.Shipping != b.Shipping {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.LineID != y.LineID || x.Quantity != y.Quantity || !x.UnitPrice.Equal(y.UnitPrice) {
			return false
		}
	}
	return true
}

func (s *Session) run(ctx context.Context, f *flow, adp adapter.Adapter, req PayRequest) {
	defer close(f.done)
	defer f.cancel()

	a := f.attempt
	ctx, span := s.svc.tracer.Start(ctx, "checkout.Pay", trace.WithAttributes(
		attribute.String("token", a.Token.String()),
		attribute.String("method", f.method.String()),
	))
	defer span.End()

	log := logger.FromContext(ctx, s.svc.log).With(
		zap.String("session_id", s.id),
		zap.String("token", a.Token.String()),
		zap.String("method", f.method.String()),
	)

	started := time.Now()
	outcome := adp.Initiate(ctx, adapter.Request{
		Token:              a.Token,
		AmountMinor:        a.AmountMinor,
		Currency:           a.Currency,
		Contact:            a.Snapshot.Contact,
		PaymentMethodToken: req.PaymentMethodToken,
		OnPrompt:           func(id string) { s.promptOpened(f, id) },
	})
	s.svc.metrics.PaymentOutcome(f.method.String(), outcome.Label(), time.Since(started))
	span.SetAttributes(attribute.String("outcome", outcome.Label()))

	switch o := outcome.(type) {
	case d.Confirmed:
		s.confirmed(ctx, log, f, o)
	case d.Declined:
		s.declined(log, f, o)
	case d.Cancelled:
		s.cancelled(log, f, o)
	}
}

func (s *Session) promptOpened(f *flow, promptID string) {
	s.mu.Lock()
	f.promptID = promptID
	s.mu.Unlock()
	select {
	case f.prompted <- struct{}{}:
	default:
	}
}

func (s *Session) declined(log *zap.Logger, f *flow, o d.Declined) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := f.attempt
	now := s.svc.now()
	if o.Kind == d.FailureValidation {
		log.Info("payment details incomplete", zap.String("stage", "initiate"), zap.String("reason", o.Reason))
		s.last = &OutcomeView{Outcome: o.Label(), Reason: o.Reason, Kind: o.Kind}
		s.settleLocked(f)
		return
	}
	a.RecordDecline(o, now)
	log.Warn("payment declined",
		zap.String("stage", "initiate"),
		zap.String("kind", string(o.Kind)),
		zap.String("reason", o.Reason),
		zap.Int("declines", a.Declines),
		zap.Error(o.Err))

	if a.Unsettled {
		log.Warn("charge outcome unknown, attempt kept for retry")
	} else if !o.Retryable() || (s.svc.maxDeclines > 0 && a.Declines >= s.svc.maxDeclines) {
		if err := a.Transition(d.AttemptFailed, now); err == nil {
			log.Warn("payment attempt exhausted, next payment uses a new token")
		}
	}

	s.last = &OutcomeView{Outcome: o.Label(), Reason: o.Reason, Kind: o.Kind}
	s.settleLocked(f)
}

func (s *Session) cancelled(log *zap.Logger, f *flow, o d.Cancelled) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info("payment cancelled", zap.String("stage", "initiate"), zap.String("reason", o.Reason))
	s.last = &OutcomeView{Outcome: o.Label(), Reason: o.Reason}
	s.settleLocked(f)
}

// settleLocked ends a flow that did not take money. The cart is untouched.
func (s *Session) settleLocked(f *flow) {
	if s.flow == f {
		s.flow = nil
	}
	switch s.state {
	case d.StateProcessing:
		s.state = d.StateReadyToPay
	case d.StateAbandoned:
		s.abandonAttemptLocked()
	}
	s.touchLocked()
}
