package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSlot struct {
	m       sync.Mutex
	data    map[string][]byte
	loadErr error
	saveErr error
	loads   atomic.Int32
	saves   atomic.Int32
	deletes atomic.Int32
	delay   time.Duration
}

func newMockSlot() *mockSlot {
	return &mockSlot{data: make(map[string][]byte)}
}

func (m *mockSlot) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.loads.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	v, ok := m.data[sessionID]
	if !ok {
		return nil, cache.ErrSlotEmpty
	}
	return v, nil
}

func (m *mockSlot) Save(_ context.Context, sessionID string, payload []byte) error {
	m.saves.Add(1)
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[sessionID] = append([]byte(nil), payload...)
	return nil
}

func (m *mockSlot) Delete(_ context.Context, sessionID string) error {
	m.deletes.Add(1)
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.data, sessionID)
	return nil
}

type recordingNotifier struct {
	m       sync.Mutex
	notices []domain.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, _ string, n domain.Notice) {
	r.m.Lock()
	defer r.m.Unlock()
	r.notices = append(r.notices, n)
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testProduct(id string, price int64) domain.Product {
	return domain.Product{ID: id, Name: id, Price: decimal.NewFromInt(price)}
}

func TestStore_AddPersistsAndNotifies(t *testing.T) {
	slot := newMockSlot()
	notifier := &recordingNotifier{}
	svc := NewCartService(slot, nil, WithNotifier(notifier), WithClock(fixedClock))
	ctx := context.Background()

	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	res, err := st.Add(ctx, testProduct("A", 120), 2, "", "")
	require.NoError(t, err)
	require.NotNil(t, res.Notice)
	assert.Equal(t, domain.NoticeAdded, res.Notice.Kind)
	assert.Equal(t, 2, res.Cart.TotalItems)

	saved, ok := slot.data["s-1"]
	require.True(t, ok)
	decoded, err := domain.DecodeItems(saved)
	require.NoError(t, err)
	assert.Equal(t, res.Cart.Items, decoded.Items)
	assert.Len(t, notifier.notices, 1)
}

func TestStore_AddRejectsMissingVariant(t *testing.T) {
	slot := newMockSlot()
	svc := NewCartService(slot, nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	p := testProduct("T", 10)
	p.Sizes = []string{"S", "M"}
	_, err = st.Add(ctx, p, 1, "", "")

	assert.ErrorIs(t, err, domain.ErrVariantRequired)
	assert.True(t, st.Cart().IsEmpty())
	assert.Equal(t, int32(0), slot.saves.Load(), "validation errors never reach the slot")
}

func TestStore_RemoveAndSetQuantityUnknownLine(t *testing.T) {
	svc := NewCartService(newMockSlot(), nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	_, err = st.Remove(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
	_, err = st.SetQuantity(ctx, "nope", 3)
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
}

func TestStore_SetQuantityZeroRemoves(t *testing.T) {
	svc := NewCartService(newMockSlot(), nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	_, err = st.Add(ctx, testProduct("A", 5), 3, "", "")
	require.NoError(t, err)

	res, err := st.SetQuantity(ctx, domain.LineID("A", "", ""), 0)
	require.NoError(t, err)
	assert.True(t, res.Cart.IsEmpty())
	require.NotNil(t, res.Notice)
	assert.Equal(t, domain.NoticeRemoved, res.Notice.Kind)
}

func TestStore_OpenCloseNotPersisted(t *testing.T) {
	slot := newMockSlot()
	svc := NewCartService(slot, nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	assert.True(t, st.Open(ctx).Cart.Open)
	assert.False(t, st.Close(ctx).Cart.Open)
	assert.Equal(t, int32(0), slot.saves.Load())
}

func TestStore_SaveFailureKeepsState(t *testing.T) {
	slot := newMockSlot()
	slot.saveErr = errors.New("disk full")
	svc := NewCartService(slot, nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	res, err := st.Add(ctx, testProduct("A", 5), 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cart.TotalItems)
	assert.Equal(t, 1, st.Cart().TotalItems)
}

func TestCartService_RehydrationRoundTrip(t *testing.T) {
	slot := newMockSlot()
	ctx := context.Background()

	first := NewCartService(slot, nil, WithClock(fixedClock))
	st, err := first.Store(ctx, "s-1")
	require.NoError(t, err)
	_, err = st.Add(ctx, testProduct("A", 120), 2, "", "")
	require.NoError(t, err)
	_, err = st.Add(ctx, testProduct("B", 35), 1, "", "")
	require.NoError(t, err)
	want := st.Cart()

	// a new process reading the same slot
	second := NewCartService(slot, nil, WithClock(fixedClock))
	got, err := second.Cart(ctx, "s-1")
	require.NoError(t, err)

	assert.Equal(t, want.Items, got.Items)
	assert.Equal(t, want.TotalItems, got.TotalItems)
	assert.True(t, want.TotalPrice.Equal(got.TotalPrice))
}

func TestCartService_CorruptSlotYieldsEmptyCart(t *testing.T) {
	slot := newMockSlot()
	slot.data["s-1"] = []byte(`{"items": [ {"product_id": "A", "quantity": `)
	svc := NewCartService(slot, nil)

	cart, err := svc.Cart(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, cart.TotalItems)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestCartService_UnreachableSlotIsReported(t *testing.T) {
	slot := newMockSlot()
	slot.loadErr = errors.New("connection refused")
	svc := NewCartService(slot, nil)

	_, err := svc.Store(context.Background(), "s-1")
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	slot.loadErr = nil
	_, err = svc.Store(context.Background(), "s-1")
	assert.NoError(t, err, "failed hydration is not cached")
}

func TestCartService_ConcurrentFirstAccessLoadsOnce(t *testing.T) {
	slot := newMockSlot()
	slot.delay = 50 * time.Millisecond
	svc := NewCartService(slot, nil)

	var wg sync.WaitGroup
	stores := make([]*Store, 10)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := svc.Store(context.Background(), "s-1")
			assert.NoError(t, err)
			stores[i] = st
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), slot.loads.Load())
	for _, st := range stores {
		assert.Same(t, stores[0], st)
	}
}

func TestCartService_ConcurrentMutationsSerialized(t *testing.T) {
	svc := NewCartService(newMockSlot(), nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Add(ctx, testProduct("A", 2), 1, "", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart := st.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 50, cart.TotalItems)
	assert.True(t, decimal.NewFromInt(100).Equal(cart.TotalPrice))
}

func TestCartService_Clear(t *testing.T) {
	slot := newMockSlot()
	svc := NewCartService(slot, nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)
	_, err = st.Add(ctx, testProduct("A", 2), 1, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "s-1"))

	assert.True(t, st.Cart().IsEmpty())
	_, saved := slot.data["s-1"]
	assert.False(t, saved, "an emptied cart is removed from the slot")
	assert.Equal(t, int32(1), slot.deletes.Load())

	// the next visit starts from an empty cart
	fresh := NewCartService(slot, nil)
	cart, err := fresh.Cart(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestStore_RemovingLastLineDeletesSlot(t *testing.T) {
	slot := newMockSlot()
	svc := NewCartService(slot, nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)
	_, err = st.Add(ctx, testProduct("A", 2), 1, "", "")
	require.NoError(t, err)
	_, err = st.Add(ctx, testProduct("B", 2), 1, "", "")
	require.NoError(t, err)

	_, err = st.Remove(ctx, domain.LineID("A", "", ""))
	require.NoError(t, err)
	assert.Contains(t, slot.data, "s-1")

	_, err = st.Remove(ctx, domain.LineID("B", "", ""))
	require.NoError(t, err)
	assert.NotContains(t, slot.data, "s-1")
}

func TestStore_MergedLineCapped(t *testing.T) {
	svc := NewCartService(newMockSlot(), nil)
	ctx := context.Background()
	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)
	p := testProduct("A", 1)

	_, err = st.Add(ctx, p, domain.MaxLineQuantity, "", "")
	require.NoError(t, err)

	res, err := st.Add(ctx, p, domain.MaxLineQuantity, "", "")
	assert.ErrorIs(t, err, domain.ErrQuantityLimit)
	assert.Equal(t, domain.MaxLineQuantity, res.Cart.TotalItems)

	_, err = st.Add(ctx, p, 0, "", "")
	assert.ErrorIs(t, err, domain.ErrQuantityLimit, "a defaulted quantity still counts toward the cap")

	_, err = st.SetQuantity(ctx, domain.LineID("A", "", ""), domain.MaxLineQuantity+1)
	assert.ErrorIs(t, err, domain.ErrQuantityLimit)

	res, err = st.SetQuantity(ctx, domain.LineID("A", "", ""), -1)
	require.NoError(t, err)
	assert.True(t, res.Cart.IsEmpty())
}

type steppingClock struct {
	m   sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()
	c.now = c.now.Add(d)
}

func TestCartService_EvictIdle(t *testing.T) {
	slot := newMockSlot()
	clock := &steppingClock{now: fixedClock()}
	svc := NewCartService(slot, nil, WithClock(clock.Now))
	ctx := context.Background()

	idle, err := svc.Store(ctx, "idle")
	require.NoError(t, err)
	_, err = idle.Add(ctx, testProduct("A", 3), 2, "", "")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, err = svc.Store(ctx, "busy")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	assert.Equal(t, 1, svc.evictIdle(30*time.Minute))

	svc.mu.RLock()
	assert.NotContains(t, svc.stores, "idle")
	assert.Contains(t, svc.stores, "busy")
	svc.mu.RUnlock()

	// the evicted cart comes back from the slot
	cart, err := svc.Cart(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalItems)
	assert.Equal(t, int32(3), slot.loads.Load(), "idle, busy, then idle again")
}

func TestCartService_EvictIdleKeepsUnsavedCart(t *testing.T) {
	slot := newMockSlot()
	slot.saveErr = errors.New("disk full")
	clock := &steppingClock{now: fixedClock()}
	svc := NewCartService(slot, nil, WithClock(clock.Now))
	ctx := context.Background()

	st, err := svc.Store(ctx, "s-1")
	require.NoError(t, err)
	_, err = st.Add(ctx, testProduct("A", 3), 1, "", "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, svc.evictIdle(30*time.Minute))

	// once the slot catches up the store may go
	slot.m.Lock()
	slot.saveErr = nil
	slot.m.Unlock()
	_, err = st.Add(ctx, testProduct("A", 3), 1, "", "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, svc.evictIdle(30*time.Minute))
}

func TestCartService_RunEvictorStopsWithContext(t *testing.T) {
	svc := NewCartService(newMockSlot(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.RunEvictor(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("evictor did not stop")
	}
}
