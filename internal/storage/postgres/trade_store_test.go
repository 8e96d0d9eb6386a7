package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

func createTestTrade(runID, tradeID, instrumentID string, buy time.Time) domain.Trade {
	return domain.Trade{
		TradeID:                tradeID,
		RunID:                  runID,
		InstrumentID:           instrumentID,
		BuyDate:                buy,
		BuyPrice:               98.5,
		EntryVolatility:        1.25,
		BuyCommission:          0.0394,
		TargetSellPrice:        99.37,
		SellDate:               buy.AddDate(0, 0, 3),
		SellPrice:              99.4,
		SellCommission:         0.03976,
		ExitReason:             domain.ExitReasonTargetReached,
		HoldingDays:            3,
		ProfitBeforeCommission: 0.9,
		NetProfit:              0.82084,
		NetProfitPercent:       0.8333,
	}
}

func TestTradeStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trades := []domain.Trade{
		createTestTrade("run-1", "t3", "BOND2", day(2024, 1, 5)),
		createTestTrade("run-1", "t2", "BOND1", day(2024, 2, 1)),
		createTestTrade("run-1", "t1", "BOND1", day(2024, 1, 10)),
		createTestTrade("run-2", "t4", "BOND1", day(2024, 1, 10)),
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{got[0].TradeID, got[1].TradeID, got[2].TradeID})
	assert.Equal(t, domain.ExitReasonTargetReached, got[0].ExitReason)
	assert.True(t, got[0].BuyDate.Equal(day(2024, 1, 10)))
	assert.InDelta(t, 0.82084, got[0].NetProfit, 1e-12)

	// A batch with one duplicate is rejected whole.
	err = store.InsertBulk(ctx, []domain.Trade{
		createTestTrade("run-3", "t5", "BOND1", day(2024, 3, 1)),
		createTestTrade("run-3", "t1", "BOND1", day(2024, 3, 2)),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err = store.GetByRunID(ctx, "run-3")
	require.NoError(t, err)
	assert.Empty(t, got)
}
