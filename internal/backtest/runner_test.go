package backtest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/observability"
	"bond-reversion-lab/internal/storage/memory"
)

var jan1 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// seedCandles inserts one candle per day starting at start.
func seedCandles(t *testing.T, store *memory.CandleStore, id string, start time.Time, volume int64, closes []float64) {
	t.Helper()
	candles := make([]*domain.Candle, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		candles[i] = &domain.Candle{
			InstrumentID: id,
			Date:         start.AddDate(0, 0, i),
			Open:         price,
			High:         price,
			Low:          price,
			Close:        price,
			Volume:       volume,
		}
	}
	if err := store.InsertBulk(context.Background(), candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
}

// dipSeries is flat at 100 with a one-day dip to 93 every 20 days, for n days.
func dipSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
		if i%20 == 19 {
			out[i] = 93
		}
	}
	return out
}

type failingCandles struct {
	*memory.CandleStore
	failOn string
}

func (f *failingCandles) GetCandles(ctx context.Context, id string, from, to time.Time) ([]*domain.Candle, error) {
	if id == f.failOn {
		return nil, errors.New("market data timeout")
	}
	return f.CandleStore.GetCandles(ctx, id, from, to)
}

func testRequest(ids ...string) Request {
	bonds := make([]domain.BondMetadata, len(ids))
	for i, id := range ids {
		bonds[i] = domain.BondMetadata{InstrumentID: id}
	}
	return Request{
		Bonds:     bonds,
		Params:    domain.DefaultStrategyParameters(),
		StartDate: jan1.AddDate(0, 0, 10),
		EndDate:   jan1.AddDate(0, 0, 119),
	}
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	candles := memory.NewCandleStore()
	seedCandles(t, candles, "A", jan1, 1000, dipSeries(120))
	seedCandles(t, candles, "B", jan1, 1000, dipSeries(120))
	tradeStore := memory.NewTradeStore()

	runner := NewRunner(RunnerOptions{
		Candles:    &failingCandles{CandleStore: candles, failOn: "BROKEN"},
		TradeStore: tradeStore,
		Metrics:    observability.NewMetrics("test", prometheus.NewRegistry()),
		Workers:    2,
	})

	report, err := runner.Run(ctx, testRequest("A", "BROKEN", "EMPTY", "B"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.BondCount != 2 {
		t.Errorf("BondCount = %d, want 2", report.BondCount)
	}
	if report.Bonds[0].Bond.InstrumentID != "A" || report.Bonds[1].Bond.InstrumentID != "B" {
		t.Errorf("bonds not in input order")
	}
	if report.ErrorCount != 2 || report.Skipped[0].InstrumentID != "BROKEN" || report.Skipped[1].InstrumentID != "EMPTY" {
		t.Errorf("unexpected skipped bonds: %+v", report.Skipped)
	}
	if report.TotalTrades == 0 {
		t.Fatal("expected trades from periodic dips")
	}
	if report.TotalTrades != report.ProfitableTrades+report.LosingTrades {
		t.Errorf("trade counts inconsistent: %d != %d + %d", report.TotalTrades, report.ProfitableTrades, report.LosingTrades)
	}

	for _, b := range report.Bonds {
		for _, tr := range b.Trades {
			if tr.HoldingDays > domain.MaxHoldingDays && !tr.SellDate.Equal(report.EndDate) {
				t.Errorf("trade %s held %d days", tr.TradeID, tr.HoldingDays)
			}
			if tr.RunID != report.RunID {
				t.Errorf("trade %s has run id %s, want %s", tr.TradeID, tr.RunID, report.RunID)
			}
		}
	}

	persisted, err := tradeStore.GetByRunID(ctx, report.RunID)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(persisted) != report.TotalTrades {
		t.Errorf("persisted %d trades, want %d", len(persisted), report.TotalTrades)
	}
}

func TestRunner_Deterministic(t *testing.T) {
	ctx := context.Background()
	candles := memory.NewCandleStore()
	for _, id := range []string{"A", "B", "C", "D"} {
		seedCandles(t, candles, id, jan1, 1000, dipSeries(120))
	}

	var first *domain.BacktestReport
	for run := 0; run < 5; run++ {
		runner := NewRunner(RunnerOptions{Candles: candles, Workers: run + 1})
		report, err := runner.Run(ctx, testRequest("D", "B", "A", "C"))
		if err != nil {
			t.Fatalf("Run %d failed: %v", run, err)
		}
		if first == nil {
			first = report
			continue
		}
		if !reflect.DeepEqual(first, report) {
			t.Fatalf("run %d produced a different report", run)
		}
	}
}

func TestRunner_VolumePrePass(t *testing.T) {
	candles := memory.NewCandleStore()
	seedCandles(t, candles, "LIQUID", jan1, 5000, dipSeries(120))
	seedCandles(t, candles, "THIN", jan1, 10, dipSeries(120))

	req := testRequest("LIQUID", "THIN")
	req.MinAvgDailyVolume = 100

	report, err := NewRunner(RunnerOptions{Candles: candles}).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.BondCount != 1 || report.Bonds[0].Bond.InstrumentID != "LIQUID" {
		t.Errorf("unexpected bonds: %d", report.BondCount)
	}
	if len(report.FilteredByVolume) != 1 || report.FilteredByVolume[0] != "THIN" {
		t.Errorf("FilteredByVolume = %v, want [THIN]", report.FilteredByVolume)
	}
	if report.ErrorCount != 0 {
		t.Errorf("volume filtering is not an error, got %d", report.ErrorCount)
	}
}

func TestRunner_InvalidRequest(t *testing.T) {
	runner := NewRunner(RunnerOptions{Candles: memory.NewCandleStore()})

	req := testRequest("A")
	req.EndDate = req.StartDate.AddDate(0, 0, -1)
	if _, err := runner.Run(context.Background(), req); err == nil {
		t.Error("expected error for reversed date range")
	}

	req = testRequest("A")
	req.Params.AnalysisPeriodMonths = 0
	if _, err := runner.Run(context.Background(), req); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestRunner_RunAsync(t *testing.T) {
	candles := memory.NewCandleStore()
	seedCandles(t, candles, "A", jan1, 1000, dipSeries(120))

	runner := NewRunner(RunnerOptions{Candles: candles})
	res := <-runner.RunAsync(context.Background(), testRequest("A"))
	if res.Err != nil {
		t.Fatalf("RunAsync failed: %v", res.Err)
	}
	if res.Report == nil || res.Report.BondCount != 1 {
		t.Errorf("unexpected report: %+v", res.Report)
	}
}

func TestRunner_RunAsyncCancelled(t *testing.T) {
	candles := memory.NewCandleStore()
	seedCandles(t, candles, "A", jan1, 1000, dipSeries(120))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-NewRunner(RunnerOptions{Candles: candles}).RunAsync(ctx, testRequest("A"))
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}
