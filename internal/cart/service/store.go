package service

import (
	"context"
	"sync"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/logger"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"go.uber.org/zap"
)

const saveTimeout = 2 * time.Second

// Notifier receives the transient notices produced by cart mutations.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n domain.Notice)
}

// Result is the cart after a mutation plus the notice it produced, if any.
type Result struct {
	Cart   domain.Cart
	Notice *domain.Notice
}

// Store is the single owner of one shopper's cart. Intents are applied one
// at a time in the order they are dispatched and every commerce mutation is
// written to the slot before Dispatch returns.
type Store struct {
	sessionID string
	slot      cache.Slot
	notifier  Notifier
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu       sync.Mutex
	cart     domain.Cart
	lastUsed time.Time
	// unsaved is set while the slot lags the in-memory cart.
	unsaved bool
}

func (s *Store) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

// evictable reports whether the store has been idle since cutoff and the slot
// holds everything it knows.
func (s *Store) evictable(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unsaved && s.lastUsed.Before(cutoff)
}

func (s *Store) SessionID() string {
	return s.sessionID
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Dispatch runs in through the reducer and then the effects.
func (s *Store) Dispatch(ctx context.Context, in domain.Intent) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, in)
}

// Add merges quantity (at least 1) into the line for the variant. The merged
// line may not exceed domain.MaxLineQuantity.
func (s *Store) Add(ctx context.Context, p domain.Product, quantity int, size, color string) (Result, error) {
	if err := p.ValidateVariant(size, color); err != nil {
		return Result{Cart: s.Cart()}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	held := 0
	if li, ok := s.cart.Line(domain.LineID(p.ID, size, color)); ok {
		held = li.Quantity
	}
	if held+max(quantity, 1) > domain.MaxLineQuantity {
		return Result{Cart: s.cart.Clone()}, domain.ErrQuantityLimit
	}
	return s.apply(ctx, domain.AddIntent{
		Product:  p,
		Quantity: quantity,
		Size:     size,
		Color:    color,
		At:       s.now(),
	}), nil
}

func (s *Store) Remove(ctx context.Context, lineID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cart.Line(lineID); !ok {
		return Result{Cart: s.cart.Clone()}, domain.ErrLineNotFound
	}
	return s.apply(ctx, domain.RemoveIntent{LineID: lineID}), nil
}

// SetQuantity replaces the line's quantity; n <= 0 removes the line.
func (s *Store) SetQuantity(ctx context.Context, lineID string, n int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cart.Line(lineID); !ok {
		return Result{Cart: s.cart.Clone()}, domain.ErrLineNotFound
	}
	if n > domain.MaxLineQuantity {
		return Result{Cart: s.cart.Clone()}, domain.ErrQuantityLimit
	}
	return s.apply(ctx, domain.SetQuantityIntent{LineID: lineID, Quantity: n}), nil
}

func (s *Store) Clear(ctx context.Context) Result {
	return s.Dispatch(ctx, domain.ClearIntent{})
}

func (s *Store) Open(ctx context.Context) Result {
	return s.Dispatch(ctx, domain.OpenIntent{})
}

func (s *Store) Close(ctx context.Context) Result {
	return s.Dispatch(ctx, domain.CloseIntent{})
}

// apply must be called with s.mu held.
func (s *Store) apply(ctx context.Context, in domain.Intent) Result {
	s.lastUsed = s.now()
	prev := s.cart
	s.cart = domain.Reduce(prev, in)
	s.metrics.CartMutation(in.Name())

	if domain.Persisted(in) {
		s.persist(ctx)
	}

	notice := domain.NoticeFor(prev, s.cart, in)
	if notice != nil && s.notifier != nil {
		s.notifier.Notify(ctx, s.sessionID, *notice)
	}
	return Result{Cart: s.cart.Clone(), Notice: notice}
}

// persist writes the items to the slot, or drops the slot entry once the
// cart is empty. A failed write is logged and the in-memory cart stays
// authoritative; the next mutation writes it again.
func (s *Store) persist(ctx context.Context) {
	log := logger.FromContext(ctx, s.log)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if s.cart.IsEmpty() {
		if err := s.slot.Delete(saveCtx, s.sessionID); err != nil {
			s.unsaved = true
			s.metrics.SlotError("delete")
			log.Error("delete cart failed", zap.String("session_id", s.sessionID), zap.Error(err))
			return
		}
		s.unsaved = false
		return
	}

	payload, err := domain.EncodeItems(s.cart)
	if err != nil {
		s.unsaved = true
		s.metrics.SlotError("encode")
		log.Error("encode cart failed", zap.String("session_id", s.sessionID), zap.Error(err))
		return
	}

	if err := s.slot.Save(saveCtx, s.sessionID, payload); err != nil {
		s.unsaved = true
		s.metrics.SlotError("save")
		log.Error("save cart failed", zap.String("session_id", s.sessionID), zap.Error(err))
		return
	}
	s.unsaved = false
}
