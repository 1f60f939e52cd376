package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_OneOrderPerToken(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	token := uuid.New()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repo.CreateOrder(ctx, newTestOrder(token))
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateToken)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, repo.OrderCount())

	o, err := repo.GetOrderByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, token, o.IdempotencyToken)
}

func TestMemoryRepository_Flags(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordFlag(ctx, &domain.ReconciliationFlag{Token: uuid.New(), Reason: "down"}))
	}

	pending, err := repo.GetPendingFlags(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].ID)
	assert.Equal(t, int64(2), pending[1].ID)

	require.NoError(t, repo.MarkFlagPublished(ctx, 1))
	pending, err = repo.GetPendingFlags(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	stale, err := repo.GetStaleFlags(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, int64(1), stale[0].ID)

	require.NoError(t, repo.ResolveFlag(ctx, 1, uuid.New()))
	f, err := repo.GetFlag(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagResolved, f.Status)
	assert.ErrorIs(t, repo.MarkFlagPublished(ctx, 1), ErrFlagNotFound)

	assert.ErrorIs(t, repo.ResolveFlag(ctx, 99, uuid.New()), ErrFlagNotFound)
}

func TestMemoryRepository_ListOrdersByUser(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first := newTestOrder(uuid.New())
	second := newTestOrder(uuid.New())
	stranger := newTestOrder(uuid.New())
	stranger.UserID = "user-456"
	for _, o := range []*domain.Order{first, second, stranger} {
		require.NoError(t, repo.CreateOrder(ctx, o))
	}

	orders, err := repo.ListOrdersByUser(ctx, "user-123", 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	orders, err = repo.ListOrdersByUser(ctx, "user-123", 1)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
