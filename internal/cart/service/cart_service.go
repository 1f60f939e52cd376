package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/logger"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrSlotUnavailable = errors.New("cart persistence unavailable")

// CartService hands out one Store per shopper session, hydrating it from the
// slot before it accepts any mutation.
type CartService struct {
	slot     cache.Slot
	notifier Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu     sync.RWMutex
	stores map[string]*Store
	sfg    singleflight.Group
}

type Option func(*CartService)

func WithNotifier(n Notifier) Option {
	return func(s *CartService) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CartService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func NewCartService(slot cache.Slot, log *zap.Logger, opts ...Option) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &CartService{
		slot:   slot,
		log:    log,
		now:    time.Now,
		stores: make(map[string]*Store),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{log: log}
	}
	return s
}

// Store returns the hydrated store for sessionID. Concurrent first requests
// for the same session share one slot read.
func (s *CartService) Store(ctx context.Context, sessionID string) (*Store, error) {
	s.mu.RLock()
	st, ok := s.stores[sessionID]
	s.mu.RUnlock()
	if ok {
		st.touch()
		return st, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		s.mu.RLock()
		existing, ok := s.stores[sessionID]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		cart, err := s.hydrate(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		st := &Store{
			sessionID: sessionID,
			slot:      s.slot,
			notifier:  s.notifier,
			log:       s.log,
			metrics:   s.metrics,
			now:       s.now,
			cart:      cart,
			lastUsed:  s.now(),
		}
		s.mu.Lock()
		s.stores[sessionID] = st
		s.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	st = v.(*Store)
	st.touch()
	return st, nil
}

// RunEvictor drops stores idle for longer than ttl until ctx ends. An evicted
// cart is rehydrated from the slot on the session's next request.
func (s *CartService) RunEvictor(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle(ttl)
		case <-ctx.Done():
			return
		}
	}
}

// evictIdle keeps stores whose last write did not reach the slot.
func (s *CartService) evictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, st := range s.stores {
		if !st.evictable(cutoff) {
			continue
		}
		delete(s.stores, id)
		evicted++
	}
	if evicted > 0 {
		s.log.Debug("idle carts evicted", zap.Int("count", evicted), zap.Int("live", len(s.stores)))
	}
	return evicted
}

// hydrate reads the saved cart. Missing or corrupt data yields an empty cart;
// only an unreachable slot is reported, so a saved cart is never overwritten
// by an empty one.
func (s *CartService) hydrate(ctx context.Context, sessionID string) (domain.Cart, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("session_id", sessionID))

	data, err := s.slot.Load(ctx, sessionID)
	if errors.Is(err, cache.ErrSlotEmpty) {
		return domain.Recalculate(domain.Cart{Items: []domain.LineItem{}}), nil
	}
	if err != nil {
		s.metrics.SlotError("load")
		log.Error("load cart failed", zap.Error(err))
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrSlotUnavailable, err)
	}

	cart, err := domain.DecodeItems(data)
	if err != nil {
		s.metrics.SlotError("decode")
		log.Warn("discarding corrupt saved cart", zap.Error(err))
		return domain.Recalculate(domain.Cart{Items: []domain.LineItem{}}), nil
	}
	log.Debug("cart rehydrated", zap.Int("lines", len(cart.Items)), zap.Int("total_items", cart.TotalItems))
	return cart, nil
}

// Cart returns a copy of the session's live cart.
func (s *CartService) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return st.Cart(), nil
}

// Clear empties the session's cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	st, err := s.Store(ctx, sessionID)
	if err != nil {
		return err
	}
	st.Clear(ctx)
	return nil
}

// LogNotifier writes notices to the service log.
type LogNotifier struct {
	log *zap.Logger
}

func (n LogNotifier) Notify(ctx context.Context, sessionID string, notice domain.Notice) {
	logger.FromContext(ctx, n.log).Debug("cart notice",
		zap.String("session_id", sessionID),
		zap.String("kind", string(notice.Kind)),
		zap.String("message", notice.Message))
}
