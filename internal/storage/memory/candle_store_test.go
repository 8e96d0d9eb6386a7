package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

func candle(id string, date time.Time, closePrice float64) *domain.Candle {
	price := decimal.NewFromFloat(closePrice)
	return &domain.Candle{InstrumentID: id, Date: date, Open: price, High: price, Low: price, Close: price, Volume: 10}
}

func TestCandleStore_InsertAndGet(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.Candle{
		candle("A", day.AddDate(0, 0, 2), 102),
		candle("A", day, 100),
		candle("A", day.AddDate(0, 0, 1), 101),
		candle("B", day, 50),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetCandles(ctx, "A", day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetCandles failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].ClosePrice() != 100 || got[1].ClosePrice() != 101 {
		t.Errorf("unexpected order: %v, %v", got[0].ClosePrice(), got[1].ClosePrice())
	}

	none, err := store.GetCandles(ctx, "missing", day, day)
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty result, got %d, %v", len(none), err)
	}
}

func TestCandleStore_TruncatesToDay(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	if err := store.InsertBulk(ctx, []*domain.Candle{candle("A", day.Add(7*time.Hour), 100)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetCandles(ctx, "A", day, day)
	if len(got) != 1 || !got[0].Date.Equal(day) {
		t.Errorf("expected candle dated %s, got %v", day, got)
	}

	err := store.InsertBulk(ctx, []*domain.Candle{candle("A", day.Add(3*time.Hour), 99)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCandleStore_BatchAtomic(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()
	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	err := store.InsertBulk(ctx, []*domain.Candle{candle("A", day, 100), candle("A", day, 101)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetCandles(ctx, "A", day, day)
	if len(got) != 0 {
		t.Errorf("failed batch must insert nothing, got %d", len(got))
	}

	if err := store.InsertBulk(ctx, []*domain.Candle{{InstrumentID: "", Date: day}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
