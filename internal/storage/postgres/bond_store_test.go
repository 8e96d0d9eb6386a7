package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

func TestBondStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBondStore(pool)

	maturity := day(2027, time.March, 15)
	require.NoError(t, store.Upsert(ctx, &domain.BondMetadata{
		InstrumentID:          "BOND2",
		Ticker:                "SU27",
		Name:                  "OFZ 27",
		Currency:              "rub",
		MaturityDate:          &maturity,
		RiskLevel:             domain.RiskLevelLow,
		CollateralEligibility: 0.75,
		AvgDailyVolume:        1200,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.BondMetadata{InstrumentID: "BOND1", Amortized: true, RiskLevel: domain.RiskLevelHigh}))

	got, err := store.GetBond(ctx, "BOND2")
	require.NoError(t, err)
	assert.Equal(t, "SU27", got.Ticker)
	assert.Equal(t, domain.RiskLevelLow, got.RiskLevel)
	require.NotNil(t, got.MaturityDate)
	assert.True(t, got.MaturityDate.Equal(maturity))
	assert.True(t, got.CollateralEligible())

	// Upsert replaces.
	require.NoError(t, store.Upsert(ctx, &domain.BondMetadata{InstrumentID: "BOND2", Ticker: "SU27R"}))
	got, err = store.GetBond(ctx, "BOND2")
	require.NoError(t, err)
	assert.Equal(t, "SU27R", got.Ticker)
	assert.Nil(t, got.MaturityDate)

	list, err := store.ListBonds(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BOND1", list[0].InstrumentID)
	assert.True(t, list[0].Amortized)
	assert.Equal(t, domain.RiskLevelHigh, list[0].RiskLevel)

	_, err = store.GetBond(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Upsert(ctx, &domain.BondMetadata{}), storage.ErrInvalidInput)
}

func TestParameterStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewParameterStore(pool)

	// Seeded by the migration.
	v, ok, err := store.Get(ctx, "VOLATILITY_MULTIPLIER")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.2", v)

	_, ok, err = store.Get(ctx, "ACCOUNT_ID")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "ACCOUNT_ID", "acc-1"))
	require.NoError(t, store.Set(ctx, "VOLATILITY_MULTIPLIER", "1,5"))

	v, ok, err = store.Get(ctx, "VOLATILITY_MULTIPLIER")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1,5", v)
}

func TestSellTargetStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSellTargetStore(pool)
	computed := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, &domain.SellTarget{
		InstrumentID: "BOND1",
		BuyPrice:     decimal.RequireFromString("98.3029"),
		SellPrice:    decimal.RequireFromString("99.1684"),
		ComputedAt:   computed,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.SellTarget{
		InstrumentID: "BOND1",
		BuyPrice:     decimal.RequireFromString("97.1"),
		SellPrice:    decimal.RequireFromString("97.9544"),
		ComputedAt:   computed.Add(time.Hour),
	}))

	got, err := store.Get(ctx, "BOND1")
	require.NoError(t, err)
	assert.Equal(t, "97.9544", got.SellPrice.String())
	assert.True(t, got.ComputedAt.Equal(computed.Add(time.Hour)))

	_, err = store.Get(ctx, "BOND2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
