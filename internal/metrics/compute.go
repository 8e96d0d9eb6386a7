package metrics

import (
	"sort"

	"bond-reversion-lab/internal/domain"
)

// SummarizeBond aggregates the trades of one bond.
// Trades are sorted by BuyDate ASC, TradeID ASC so the result does not depend on input order.
func SummarizeBond(bond domain.BondMetadata, trades []domain.Trade, skippedDays int) domain.BondBacktestResult {
	sorted := sortTrades(trades)
	n := len(sorted)

	result := domain.BondBacktestResult{
		Bond:        bond,
		Trades:      sorted,
		TotalTrades: n,
		SkippedDays: skippedDays,
	}
	if n == 0 {
		return result
	}

	net := make([]float64, n)
	gross := make([]float64, n)
	holding := make([]float64, n)
	pct := make([]float64, n)
	for i, t := range sorted {
		if t.Profitable() {
			result.ProfitableTrades++
		} else {
			result.LosingTrades++
		}
		net[i] = t.NetProfit
		gross[i] = t.ProfitBeforeCommission
		holding[i] = float64(t.HoldingDays)
		pct[i] = t.NetProfitPercent
	}

	result.WinRate = computeWinRate(result.ProfitableTrades, n)
	result.TotalNetProfit = computeSum(net)
	result.AvgNetProfit = computeMean(net)
	result.TotalProfitBeforeCommission = computeSum(gross)
	result.AvgProfitBeforeCommission = computeMean(gross)
	result.AvgHoldingDays = computeMean(holding)
	result.AvgProfitPercent = computeMean(pct)

	return result
}

// rollUp fills the run-level totals of report from report.Bonds.
// Averages are taken over trades, not over bonds.
func rollUp(report *domain.BacktestReport) {
	report.BondCount = len(report.Bonds)

	var net, gross, holding, pct []float64
	for _, b := range report.Bonds {
		if b.TotalTrades > 0 {
			report.BondsWithTrades++
		}
		report.TotalTrades += b.TotalTrades
		report.ProfitableTrades += b.ProfitableTrades
		report.LosingTrades += b.LosingTrades

		for _, t := range b.Trades {
			net = append(net, t.NetProfit)
			gross = append(gross, t.ProfitBeforeCommission)
			holding = append(holding, float64(t.HoldingDays))
			pct = append(pct, t.NetProfitPercent)
		}
	}

	report.WinRate = computeWinRate(report.ProfitableTrades, report.TotalTrades)
	report.TotalNetProfit = computeSum(net)
	report.AvgNetProfit = computeMean(net)
	report.TotalProfitBeforeCommission = computeSum(gross)
	report.AvgHoldingDays = computeMean(holding)
	report.AvgProfitPercent = computeMean(pct)
}

// sortTrades returns a copy of trades sorted by BuyDate ASC, TradeID ASC.
func sortTrades(trades []domain.Trade) []domain.Trade {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].BuyDate.Equal(sorted[j].BuyDate) {
			return sorted[i].BuyDate.Before(sorted[j].BuyDate)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})
	return sorted
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeSum adds values in order.
func computeSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return computeSum(values) / float64(len(values))
}
