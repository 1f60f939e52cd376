package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps orders and flags in process. It enforces the same
// one-order-per-token rule as the Postgres schema.
type MemoryRepository struct {
	mu      sync.RWMutex
	orders  map[uuid.UUID]*domain.Order
	byToken map[uuid.UUID]uuid.UUID
	flags   map[int64]*domain.ReconciliationFlag
	nextID  int64
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:  make(map[uuid.UUID]*domain.Order),
		byToken: make(map[uuid.UUID]uuid.UUID),
		flags:   make(map[int64]*domain.ReconciliationFlag),
		now:     time.Now,
	}
}

func (r *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[order.IdempotencyToken]; ok {
		return ErrDuplicateToken
	}
	now := r.now()
	order.CreatedAt, order.UpdatedAt = now, now
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &stored
	r.byToken[order.IdempotencyToken] = order.ID
	return nil
}

func (r *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepository) GetOrderByToken(ctx context.Context, token uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byToken[token]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return r.GetOrderByID(ctx, id)
}

func (r *MemoryRepository) ListOrdersByUser(_ context.Context, userID string, limit int) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			orders = append(orders, &cp)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// OrderCount reports how many orders exist.
func (r *MemoryRepository) OrderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *MemoryRepository) RecordFlag(_ context.Context, flag *domain.ReconciliationFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := r.now()
	flag.ID = r.nextID
	flag.Status = domain.FlagPending
	flag.CreatedAt, flag.UpdatedAt = now, now
	cp := *flag
	r.flags[flag.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetPendingFlags(_ context.Context, limit int) ([]*domain.ReconciliationFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.ReconciliationFlag
	for _, f := range r.flags {
		if f.Status == domain.FlagPending {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetStaleFlags(_ context.Context, publishedBefore time.Time, limit int) ([]*domain.ReconciliationFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.ReconciliationFlag
	for _, f := range r.flags {
		if f.Status == domain.FlagPublished && f.UpdatedAt.Before(publishedBefore) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetFlag(_ context.Context, id int64) (*domain.ReconciliationFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flags[id]
	if !ok {
		return nil, ErrFlagNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *MemoryRepository) MarkFlagPublished(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flags[id]
	if !ok || f.Status == domain.FlagResolved {
		return ErrFlagNotFound
	}
	f.Status = domain.FlagPublished
	f.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) ResolveFlag(_ context.Context, id int64, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flags[id]
	if !ok {
		return ErrFlagNotFound
	}
	f.Status = domain.FlagResolved
	f.OrderID = &orderID
	f.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
