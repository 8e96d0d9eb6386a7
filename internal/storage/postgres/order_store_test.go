package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

func createTestOrder(id string, dir domain.Direction, status domain.OrderStatus, created time.Time) *domain.Order {
	return &domain.Order{
		ID:            id,
		AccountID:     "acc-1",
		InstrumentID:  "BOND1",
		Direction:     dir,
		RequestedLots: 10,
		Price:         decimal.RequireFromString("98.3029"),
		Status:        status,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestOrderStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderStore(pool)
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

	buy := createTestOrder("buy-1", domain.DirectionBuy, domain.OrderStatusNew, base)
	buy.ExchangeID = "ex-1"
	buy.SubmittedAt = ptr(base.Add(time.Second))
	require.NoError(t, store.Insert(ctx, buy))

	t.Run("GetByID", func(t *testing.T) {
		got, err := store.GetByID(ctx, "buy-1")
		require.NoError(t, err)
		assert.Equal(t, "ex-1", got.ExchangeID)
		assert.True(t, got.Price.Equal(buy.Price))
		assert.True(t, got.AvgExecPrice.IsZero())
		assert.Empty(t, got.ParentOrderID)
		require.NotNil(t, got.SubmittedAt)
		assert.True(t, got.SubmittedAt.Equal(*buy.SubmittedAt))
		assert.Nil(t, got.ExecutedAt)

		_, err = store.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		err := store.Insert(ctx, createTestOrder("buy-1", domain.DirectionBuy, domain.OrderStatusNew, base))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("UpdateAndPairing", func(t *testing.T) {
		updated, err := store.Update(ctx, "buy-1", func(o *domain.Order) error {
			o.Status = domain.OrderStatusFilled
			o.ExecutedLots = 10
			o.AvgExecPrice = decimal.RequireFromString("98.25")
			o.ExecutedAt = ptr(base.Add(time.Minute))
			o.ParentOrderID = "ignored"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusFilled, updated.Status)
		assert.Empty(t, updated.ParentOrderID)

		unpaired, err := store.ListUnpairedFilledBuys(ctx)
		require.NoError(t, err)
		require.Len(t, unpaired, 1)
		assert.Equal(t, "buy-1", unpaired[0].ID)

		sell := createTestOrder("sell-1", domain.DirectionSell, domain.OrderStatusPending, base.Add(2*time.Minute))
		sell.ParentOrderID = "buy-1"
		require.NoError(t, store.Insert(ctx, sell))

		dup := createTestOrder("sell-2", domain.DirectionSell, domain.OrderStatusPending, base.Add(3*time.Minute))
		dup.ParentOrderID = "buy-1"
		assert.ErrorIs(t, store.Insert(ctx, dup), storage.ErrDuplicateKey)

		paired, err := store.FindByParentID(ctx, "buy-1")
		require.NoError(t, err)
		assert.Equal(t, "sell-1", paired.ID)

		unpaired, err = store.ListUnpairedFilledBuys(ctx)
		require.NoError(t, err)
		assert.Empty(t, unpaired)
	})

	t.Run("UpdateAbort", func(t *testing.T) {
		boom := errors.New("abort")
		_, err := store.Update(ctx, "sell-1", func(o *domain.Order) error {
			o.Status = domain.OrderStatusError
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetByID(ctx, "sell-1")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, got.Status)

		_, err = store.Update(ctx, "missing", func(*domain.Order) error { return nil })
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Lists", func(t *testing.T) {
		active, err := store.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "sell-1", active[0].ID)

		all, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "sell-1", all[0].ID)

		limited, err := store.List(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestOrderStore_ConcurrentUpdates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderStore(pool)
	require.NoError(t, store.Insert(ctx, createTestOrder("o-1", domain.DirectionBuy, domain.OrderStatusNew, time.Now().UTC())))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "o-1", func(o *domain.Order) error {
				o.ExecutedLots++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.ExecutedLots)
}

func TestOrderStore_ConcurrentPairedInsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderStore(pool)
	require.NoError(t, store.Insert(ctx, createTestOrder("buy", domain.DirectionBuy, domain.OrderStatusFilled, time.Now().UTC())))

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sell := createTestOrder("sell-"+string(rune('a'+i)), domain.DirectionSell, domain.OrderStatusPending, time.Now().UTC())
			sell.ParentOrderID = "buy"
			if err := store.Insert(ctx, sell); err == nil {
				mu.Lock()
				inserted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, storage.ErrDuplicateKey)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
}
