package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/idhash"
	"bond-reversion-lab/internal/lookup"
	"bond-reversion-lab/internal/scoring"
	"bond-reversion-lab/internal/strategy"
)

// ErrInvalidRange is returned when the simulation end date precedes its start date.
var ErrInvalidRange = errors.New("end date before start date")

// Input holds everything needed to simulate one bond.
type Input struct {
	RunID     string
	Bond      domain.BondMetadata
	Candles   []*domain.Candle // ordered by date ASC, covering [Start - months, End]
	Params    domain.StrategyParameters
	StartDate time.Time
	EndDate   time.Time
}

// Outcome is the result of simulating one bond.
type Outcome struct {
	Trades      []domain.Trade
	SkippedDays int // flat days where the price formula rejected its inputs
}

// position is an open trade.
type position struct {
	buyDate       time.Time
	buyPrice      float64
	volatility    float64
	buyCommission float64
	target        float64
}

// Run replays the strategy over [StartDate, EndDate] one calendar day at a time.
//
// For each day d:
//   - with an open position, lastPrice is the close of the most recent candle <= d;
//     the position closes when lastPrice >= target or after MaxHoldingDays.
//   - without a position, the analysis window [d - months, d] is built; an empty
//     window skips the day. The buy limit is priced off the close preceding lastPrice
//     and the window volatility. The position opens when lastPrice <= buyPrice and
//     the window shows non-zero volatility. The volatility gate goes beyond the plain
//     lastPrice <= buyPrice rule and only suppresses entries on perfectly flat windows.
//
// A position still open after EndDate is closed at EndDate with the last available close.
// The decision on day d uses the close of day d itself when that candle exists.
// The context is checked between days.
func Run(ctx context.Context, in Input) (*Outcome, error) {
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}
	start := domain.DateOf(in.StartDate)
	end := domain.DateOf(in.EndDate)
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	out := &Outcome{}
	var open *position

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if open != nil {
			lastPrice, err := lookup.CloseAt(d, in.Candles)
			if err != nil {
				continue
			}
			holdingDays := domain.DaysBetween(open.buyDate, d)

			switch {
			case lastPrice >= open.target:
				out.Trades = append(out.Trades, closeTrade(in, open, d, lastPrice, domain.ExitReasonTargetReached))
				open = nil
			case holdingDays >= domain.MaxHoldingDays:
				out.Trades = append(out.Trades, closeTrade(in, open, d, lastPrice, domain.ExitReasonTimeout))
				open = nil
			}
			continue
		}

		window := lookup.Window(in.Candles, d.AddDate(0, -in.Params.AnalysisPeriodMonths, 0), d)
		if len(window) == 0 {
			continue
		}

		closes := lookup.Closes(window)
		volatility := scoring.StdDev(closes)
		lastPrice := closes[len(closes)-1]
		reference := lastPrice
		if len(closes) > 1 {
			reference = closes[len(closes)-2]
		}

		rec, err := strategy.Recommend(reference, volatility, scoring.Mean(closes), in.Params)
		if err != nil {
			if domain.IsSkippable(err) {
				out.SkippedDays++
				continue
			}
			return nil, fmt.Errorf("recommend %s on %s: %w", in.Bond.InstrumentID, d.Format("2006-01-02"), err)
		}

		if volatility > 0 && lastPrice <= rec.BuyPrice {
			open = &position{
				buyDate:       d,
				buyPrice:      rec.BuyPrice,
				volatility:    volatility,
				buyCommission: rec.BuyCommission,
				target:        rec.SellPrice,
			}
		}
	}

	if open != nil {
		lastPrice, err := lookup.CloseAt(end, in.Candles)
		if err != nil {
			return nil, fmt.Errorf("force close %s: %w", in.Bond.InstrumentID, domain.ErrDataUnavailable)
		}
		out.Trades = append(out.Trades, closeTrade(in, open, end, lastPrice, domain.ExitReasonEndOfPeriod))
	}

	return out, nil
}

func closeTrade(in Input, p *position, sellDate time.Time, sellPrice float64, reason domain.ExitReason) domain.Trade {
	exit := strategy.Exit(p.buyPrice, p.buyCommission, sellPrice, in.Params.BrokerCommissionFraction)

	return domain.Trade{
		TradeID:      idhash.ComputeTradeID(in.RunID, in.Bond.InstrumentID, p.buyDate),
		RunID:        in.RunID,
		InstrumentID: in.Bond.InstrumentID,

		BuyDate:         p.buyDate,
		BuyPrice:        p.buyPrice,
		EntryVolatility: p.volatility,
		BuyCommission:   p.buyCommission,
		TargetSellPrice: p.target,

		SellDate:       sellDate,
		SellPrice:      sellPrice,
		SellCommission: exit.SellCommission,
		ExitReason:     reason,

		HoldingDays:            domain.DaysBetween(p.buyDate, sellDate),
		ProfitBeforeCommission: exit.ProfitBeforeCommission,
		NetProfit:              exit.NetProfit,
		NetProfitPercent:       exit.NetProfitPercent,
	}
}
