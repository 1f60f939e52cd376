package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	d "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// View is what the checkout page renders.
type View struct {
	SessionID   string          `json:"session_id"`
	State       d.SessionState  `json:"state"`
	Snapshot    *d.CartSnapshot `json:"snapshot,omitempty"`
	Fields      d.Fields        `json:"fields"`
	Method      d.Method        `json:"method,omitempty"`
	SubmitLabel string          `json:"submit_label,omitempty"`
	Busy        bool            `json:"busy"`
	PromptID    string          `json:"prompt_id,omitempty"`
	Attempt     *AttemptView    `json:"attempt,omitempty"`
	LastOutcome *OutcomeView    `json:"last_outcome,omitempty"`
	Receipt     *d.Receipt      `json:"receipt,omitempty"`
}

type AttemptView struct {
	Token       uuid.UUID       `json:"token"`
	Status      d.AttemptStatus `json:"status"`
	Declines    int             `json:"declines"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
}

// OutcomeView is the transient notice for the last payment outcome.
type OutcomeView struct {
	Outcome string        `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
	Kind    d.FailureKind `json:"kind,omitempty"`
}

// Session is one shopper's checkout. Only one payment flow runs at a time.
type Session struct {
	svc    *CheckoutService
	id     string
	userID string

	mu           sync.Mutex
	state        d.SessionState
	fields       d.Fields
	entry        d.CartSnapshot
	method       d.Method
	attempt      *d.PaymentAttempt
	flow         *flow
	last         *OutcomeView
	receipt      *d.Receipt
	lastActivity time.Time
}

type flow struct {
	method   d.Method
	attempt  *d.PaymentAttempt
	cancel   context.CancelFunc
	done     chan struct{}
	prompted chan struct{}
	promptID string
}

func newSession(svc *CheckoutService, id, userID string, entry d.CartSnapshot, fields d.Fields) *Session {
	s := &Session{
		svc:          svc,
		id:           id,
		userID:       userID,
		state:        d.StateCollecting,
		fields:       fields,
		entry:        entry,
		lastActivity: svc.now(),
	}
	if fields.Validate() == nil {
		s.state = d.StateReadyToPay
	}
	return s
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	entry := s.entry.Clone()
	v := View{
		SessionID: s.id,
		State:     s.state,
		Snapshot:  &entry,
		Fields:    s.fields,
		Method:    s.method,
		Busy:      s.flow != nil,
	}
	if s.method != "" {
		v.SubmitLabel = s.method.SubmitLabel()
	}
	if s.flow != nil {
		v.PromptID = s.flow.promptID
	}
	if a := s.attempt; a != nil {
		v.Attempt = &AttemptView{
			Token:       a.Token,
			Status:      a.Status,
			Declines:    a.Declines,
			AmountMinor: a.AmountMinor,
			Currency:    a.Currency,
		}
	}
	if s.last != nil {
		last := *s.last
		v.LastOutcome = &last
	}
	if s.receipt != nil {
		r := *s.receipt
		v.Receipt = &r
	}
	return v
}

func (s *Session) closedLocked() bool {
	return s.state == d.StateCompleted || s.state == d.StateAborted || s.state == d.StateAbandoned
}

func (s *Session) touchLocked() {
	s.lastActivity = s.svc.now()
}

func (s *Session) inFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow != nil
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow == nil && s.lastActivity.Before(cutoff)
}

// unsettled reports whether the current attempt may have been charged
// without the provider saying so.
func (s *Session) unsettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsettledLocked()
}

func (s *Session) unsettledLocked() bool {
	return s.attempt != nil && s.attempt.Unsettled && !s.attempt.Status.IsTerminal()
}

func (s *Session) fieldsCopy() d.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// close retires a session replaced by a fresh entry.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonAttemptLocked()
	if s.state != d.StateCompleted {
		s.state = d.StateAbandoned
	}
}

// abandonAttemptLocked retires the current attempt and its token. An
// unsettled attempt is kept: its token is the only safe way to retry.
func (s *Session) abandonAttemptLocked() {
	if s.unsettledLocked() {
		return
	}
	if s.attempt != nil && s.attempt.Status == d.AttemptInitiated {
		_ = s.attempt.Transition(d.AttemptAbandoned, s.svc.now())
	}
}

// SetFields stores the shopper's details. The returned error is a
// *domain.FieldErrors while required fields are blank; the fields are kept
// either way.
func (s *Session) SetFields(f d.Fields) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closedLocked() {
		return View{}, ErrSessionClosed
	}
	if s.flow != nil {
		return View{}, ErrBusy
	}
	s.fields = f
	s.entry.Contact = f.Contact
	s.entry.Shipping = f.Shipping
	s.touchLocked()

	err := f.Validate()
	if err != nil {
		s.state = d.StateCollecting
	} else {
		s.state = d.StateReadyToPay
	}
	return s.viewLocked(), err
}

// SelectMethod makes m the single active adapter. A flow still running for
// another method is cancelled and drained first.
func (s *Session) SelectMethod(ctx context.Context, m d.Method) (View, error) {
	s.mu.Lock()
	if s.closedLocked() {
		s.mu.Unlock()
		return View{}, ErrSessionClosed
	}
	if s.state == d.StateCollecting {
		s.mu.Unlock()
		return View{}, ErrFieldsIncomplete
	}
	if s.flow != nil && s.flow.method == m {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	ok, err := s.svc.payments.IsAvailable(ctx, m)
	if err != nil {
		s.svc.log.Warn("availability check failed",
			zap.String("session_id", s.id),
			zap.String("method", m.String()),
			zap.Error(err))
		return View{}, fmt.Errorf("%w: %s", ErrMethodUnavailable, m)
	}
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrMethodUnavailable, m)
	}

	s.mu.Lock()
	if f := s.flow; f != nil {
		s.svc.log.Info("cancelling in-flight payment for method switch",
			zap.String("session_id", s.id),
			zap.String("from", f.method.String()),
			zap.String("to", m.String()))
		f.cancel()
		s.mu.Unlock()
		// a charge already sent to the provider is not interrupted
		select {
		case <-f.done:
		case <-ctx.Done():
			return View{}, ErrBusy
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.closedLocked() {
		return View{}, ErrSessionClosed
	}
	if s.flow != nil {
		return View{}, ErrBusy
	}
	if s.attempt != nil && s.attempt.Method != m {
		if s.unsettledLocked() {
			return View{}, fmt.Errorf("%w: %s", ErrPaymentUnsettled, s.attempt.Method)
		}
		s.abandonAttemptLocked()
	}
	s.method = m
	s.touchLocked()
	return s.viewLocked(), nil
}

// WalletCallback forwards a wallet prompt result to the running flow.
// Prompts from superseded flows are refused.
func (s *Session) WalletCallback(promptID, token string, dismissed bool) error {
	s.mu.Lock()
	f := s.flow
	if f == nil || f.promptID == "" || f.promptID != promptID {
		s.mu.Unlock()
		return ErrStalePrompt
	}
	s.touchLocked()
	s.mu.Unlock()

	return s.svc.payments.DeliverWallet(promptID, token, dismissed)
}

func (s *Session) Receipt() (d.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receipt == nil {
		return d.Receipt{}, ErrNoReceipt
	}
	return *s.receipt, nil
}

// Abandon cancels any in-flight flow and closes the session. A payment that
// was already confirmed still completes out of sight. A session whose
// payment is unsettled stays open so the shopper can retry it.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	f := s.flow
	if f != nil {
		f.cancel()
	}
	s.mu.Unlock()

	if f != nil {
		select {
		case <-f.done:
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == d.StateCompleted {
		return nil
	}
	if s.flow == nil && s.unsettledLocked() {
		return ErrPaymentUnsettled
	}
	s.state = d.StateAbandoned
	if s.flow == nil {
		s.abandonAttemptLocked()
	}
	s.svc.log.Info("checkout abandoned", zap.String("session_id", s.id))
	return nil
}
