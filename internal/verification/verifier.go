// Package verification checks that persisted backtest trades are reproduced
// by a fresh simulation over the same candles and parameters.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/simulation"
	"bond-reversion-lab/internal/storage"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// ErrNoStoredTrades is returned when the run has nothing to verify.
var ErrNoStoredTrades = errors.New("no stored trades for run")

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// TradeResult is the verification outcome of one stored trade.
type TradeResult struct {
	TradeID      string
	InstrumentID string
	BuyDate      time.Time
	Match        bool
	Missing      bool // not produced by the replay
	Divergences  []FieldDivergence
}

// Report contains results for a verified run.
type Report struct {
	RunID           string
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	MissingTrades   int
	ExtraTrades     []domain.Trade // produced by the replay but never stored
	Results         []TradeResult
	Errors          map[string]string // instrument_id -> replay failure
}

// OK reports whether every stored trade was reproduced and nothing extra appeared.
func (r *Report) OK() bool {
	return r.DivergentTrades == 0 && r.MissingTrades == 0 && len(r.ExtraTrades) == 0 && len(r.Errors) == 0
}

// Request identifies the run to verify. The period and parameters must be those of the original run.
type Request struct {
	RunID     string
	Params    domain.StrategyParameters
	StartDate time.Time
	EndDate   time.Time
}

// Verifier replays stored runs.
type Verifier struct {
	trades  storage.TradeStore
	candles storage.CandleSeriesProvider
	bonds   storage.BondUniverseProvider
}

// NewVerifier creates a verifier. bonds may be nil; the simulation only needs instrument ids.
func NewVerifier(trades storage.TradeStore, candles storage.CandleSeriesProvider, bonds storage.BondUniverseProvider) *Verifier {
	return &Verifier{trades: trades, candles: candles, bonds: bonds}
}

// VerifyRun re-simulates every instrument that has stored trades and compares the trades by id.
// A replay failure of one instrument is recorded in Report.Errors and does not stop the others.
func (v *Verifier) VerifyRun(ctx context.Context, req Request) (*Report, error) {
	stored, err := v.trades.GetByRunID(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrNoStoredTrades
	}

	byInstrument := make(map[string][]domain.Trade)
	for _, t := range stored {
		byInstrument[t.InstrumentID] = append(byInstrument[t.InstrumentID], t)
	}
	ids := make([]string, 0, len(byInstrument))
	for id := range byInstrument {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &Report{RunID: req.RunID, TotalTrades: len(stored), Errors: make(map[string]string)}
	for _, id := range ids {
		replayed, err := v.replay(ctx, id, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			report.Errors[id] = err.Error()
			for _, t := range byInstrument[id] {
				report.Results = append(report.Results, TradeResult{TradeID: t.TradeID, InstrumentID: id, BuyDate: t.BuyDate, Missing: true})
				report.MissingTrades++
			}
			continue
		}
		compareInstrument(report, byInstrument[id], replayed)
	}
	return report, nil
}

func (v *Verifier) replay(ctx context.Context, instrumentID string, req Request) ([]domain.Trade, error) {
	bond := domain.BondMetadata{InstrumentID: instrumentID}
	if v.bonds != nil {
		b, err := v.bonds.GetBond(ctx, instrumentID)
		switch {
		case err == nil:
			bond = *b
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load bond: %w", err)
		}
	}

	start := domain.DateOf(req.StartDate)
	end := domain.DateOf(req.EndDate)
	candles, err := v.candles.GetCandles(ctx, instrumentID, start.AddDate(0, -req.Params.AnalysisPeriodMonths, 0), end)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}

	outcome, err := simulation.Run(ctx, simulation.Input{
		RunID:     req.RunID,
		Bond:      bond,
		Candles:   candles,
		Params:    req.Params,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return nil, err
	}
	return outcome.Trades, nil
}

func compareInstrument(report *Report, stored, replayed []domain.Trade) {
	replayedByID := make(map[string]domain.Trade, len(replayed))
	for _, t := range replayed {
		replayedByID[t.TradeID] = t
	}

	for _, s := range stored {
		res := TradeResult{TradeID: s.TradeID, InstrumentID: s.InstrumentID, BuyDate: s.BuyDate}
		r, ok := replayedByID[s.TradeID]
		if !ok {
			res.Missing = true
			report.MissingTrades++
			report.Results = append(report.Results, res)
			continue
		}
		delete(replayedByID, s.TradeID)

		res.Divergences = CompareTrades(s, r)
		res.Match = len(res.Divergences) == 0
		if res.Match {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
		report.Results = append(report.Results, res)
	}

	// Keep replay order for extras.
	for _, t := range replayed {
		if _, extra := replayedByID[t.TradeID]; extra {
			report.ExtraTrades = append(report.ExtraTrades, t)
		}
	}
}

// CompareTrades compares two trades and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTrades(stored, replayed domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence

	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.TradeID != replayed.TradeID {
		add("TradeID", stored.TradeID, replayed.TradeID)
	}
	if stored.InstrumentID != replayed.InstrumentID {
		add("InstrumentID", stored.InstrumentID, replayed.InstrumentID)
	}
	if !sameDay(stored.BuyDate, replayed.BuyDate) {
		add("BuyDate", stored.BuyDate, replayed.BuyDate)
	}
	if !sameDay(stored.SellDate, replayed.SellDate) {
		add("SellDate", stored.SellDate, replayed.SellDate)
	}
	if stored.ExitReason != replayed.ExitReason {
		add("ExitReason", stored.ExitReason, replayed.ExitReason)
	}
	if stored.HoldingDays != replayed.HoldingDays {
		add("HoldingDays", stored.HoldingDays, replayed.HoldingDays)
	}

	floats := []struct {
		field            string
		expected, actual float64
	}{
		{"BuyPrice", stored.BuyPrice, replayed.BuyPrice},
		{"EntryVolatility", stored.EntryVolatility, replayed.EntryVolatility},
		{"BuyCommission", stored.BuyCommission, replayed.BuyCommission},
		{"TargetSellPrice", stored.TargetSellPrice, replayed.TargetSellPrice},
		{"SellPrice", stored.SellPrice, replayed.SellPrice},
		{"SellCommission", stored.SellCommission, replayed.SellCommission},
		{"ProfitBeforeCommission", stored.ProfitBeforeCommission, replayed.ProfitBeforeCommission},
		{"NetProfit", stored.NetProfit, replayed.NetProfit},
		{"NetProfitPercent", stored.NetProfitPercent, replayed.NetProfitPercent},
	}
	for _, f := range floats {
		if !floatEquals(f.expected, f.actual) {
			add(f.field, f.expected, f.actual)
		}
	}

	return divergences
}

func sameDay(a, b time.Time) bool {
	return domain.DateOf(a).Equal(domain.DateOf(b))
}

// floatEquals compares two float64 values with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
