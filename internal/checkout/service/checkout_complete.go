package service

import (
	"context"
	"time"

	d "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/reconciler"
	"go.uber.org/zap"
)

const clearTimeout = 5 * time.Second

// confirmed hands a captured payment to the order reconciler, then clears the
// cart and issues the receipt. It runs even if the shopper has left.
func (s *Session) confirmed(ctx context.Context, log *zap.Logger, f *flow, o d.Confirmed) {
	s.mu.Lock()
	a := f.attempt
	a.ConfirmationRef = o.Ref
	if err := a.Transition(d.AttemptProviderConfirmed, s.svc.now()); err != nil {
		log.Error("unexpected attempt status on confirmation", zap.Error(err))
	}
	req := reconciler.Request{
		Token:           a.Token,
		ConfirmationRef: o.Ref,
		Method:          a.Method.String(),
		UserID:          s.userID,
		AmountMinor:     a.AmountMinor,
		Snapshot:        a.Snapshot,
	}
	s.mu.Unlock()

	log = log.With(zap.String("confirmation_ref", o.Ref))
	log.Info("payment confirmed")

	res := s.svc.reconciler.Reconcile(context.WithoutCancel(ctx), req)

	s.mu.Lock()
	now := s.svc.now()
	if res.Flagged {
		a.Reconcile = true
		a.LastReason = res.Reason
		_ = a.Transition(d.AttemptFailed, now)
		log.Error("order creation failed after payment, flagged for reconciliation",
			zap.String("stage", "reconcile"),
			zap.String("reason", res.Reason))
	} else {
		a.OrderID = res.OrderID
		_ = a.Transition(d.AttemptOrderCreated, now)
		log.Info("order reconciled", zap.String("order_id", res.OrderID), zap.Bool("duplicate", res.Duplicate))
	}
	receipt := d.Receipt{
		OrderID:         res.OrderID,
		ConfirmationRef: o.Ref,
		Amount:          a.Snapshot.TotalAmount,
		Currency:        a.Currency,
		Method:          a.Method,
		Items:           a.Snapshot.Clone().Items,
		Flagged:         res.Flagged,
		IssuedAt:        now,
	}
	s.mu.Unlock()

	s.clearCart(ctx, log)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipt = &receipt
	s.state = d.StateCompleted
	s.last = &OutcomeView{Outcome: o.Label()}
	if s.flow == f {
		s.flow = nil
	}
	s.touchLocked()
}

// clearCart is the post-payment clear. A failure is logged; the receipt is
// still shown because the payment went through.
func (s *Session) clearCart(ctx context.Context, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
	defer cancel()

	if err := s.svc.carts.Clear(ctx, s.id); err != nil {
		log.Error("post-payment cart clear failed", zap.String("stage", "clear_cart"), zap.Error(err))
	}
}
