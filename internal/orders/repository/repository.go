package repository

import (
	"context"
	"errors"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateToken = errors.New("order for this idempotency token already exists")
	ErrFlagNotFound   = errors.New("reconciliation flag not found")
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// OrderRepository is the order-creation collaborator. CreateOrder fails with
// ErrDuplicateToken when an order already exists for the token.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByToken(ctx context.Context, token uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error)
	Close() error
}

// FlagRepository stores payments awaiting out-of-band reconciliation. A
// published flag that was not resolved in time is stale and gets published
// again.
type FlagRepository interface {
	RecordFlag(ctx context.Context, flag *domain.ReconciliationFlag) error
	GetPendingFlags(ctx context.Context, limit int) ([]*domain.ReconciliationFlag, error)
	GetStaleFlags(ctx context.Context, publishedBefore time.Time, limit int) ([]*domain.ReconciliationFlag, error)
	GetFlag(ctx context.Context, id int64) (*domain.ReconciliationFlag, error)
	MarkFlagPublished(ctx context.Context, id int64) error
	ResolveFlag(ctx context.Context, id int64, orderID uuid.UUID) error
}

type Repository interface {
	OrderRepository
	FlagRepository
}
