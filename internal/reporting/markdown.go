package reporting

import (
	"fmt"
	"strings"
	"time"

	"bond-reversion-lab/internal/domain"
)

const dateLayout = "2006-01-02"

// RenderBacktestMarkdown renders a backtest report as Markdown string.
// Per-bond trade tables are included when withTrades is set.
func RenderBacktestMarkdown(r *domain.BacktestReport, generatedAt time.Time, withTrades bool) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Period: %s to %s | Analysis window: %d months\n\n",
		r.RunID, r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout), r.AnalysisPeriodMonths))

	// Parameters
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Volatility Multiplier | %.4f |\n", r.Parameters.VolatilityMultiplier))
	sb.WriteString(fmt.Sprintf("| Profit Margin | %.4f%% |\n", r.Parameters.ProfitMarginFraction*100))
	sb.WriteString(fmt.Sprintf("| Broker Commission | %.4f%% |\n", r.Parameters.BrokerCommissionFraction*100))
	sb.WriteString(fmt.Sprintf("| Max Holding Days | %d |\n", domain.MaxHoldingDays))
	sb.WriteString("\n")

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Bonds | %d |\n", r.BondCount))
	sb.WriteString(fmt.Sprintf("| Bonds With Trades | %d |\n", r.BondsWithTrades))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Profitable / Losing | %d / %d |\n", r.ProfitableTrades, r.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", r.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Total Net Profit | %.4f |\n", r.TotalNetProfit))
	sb.WriteString(fmt.Sprintf("| Avg Net Profit | %.4f |\n", r.AvgNetProfit))
	sb.WriteString(fmt.Sprintf("| Total Profit Before Commission | %.4f |\n", r.TotalProfitBeforeCommission))
	sb.WriteString(fmt.Sprintf("| Avg Holding Days | %.2f |\n", r.AvgHoldingDays))
	sb.WriteString(fmt.Sprintf("| Avg Profit %% | %.4f |\n", r.AvgProfitPercent))
	sb.WriteString(fmt.Sprintf("| Errors | %d |\n", r.ErrorCount))
	sb.WriteString("\n")

	// Per-bond results
	sb.WriteString("## Bonds\n\n")
	if len(r.Bonds) > 0 {
		sb.WriteString("| Instrument | Ticker | Trades | Win | Loss | WinRate | Net Profit | Avg Net | Avg Days | Avg % | Skipped Days |\n")
		sb.WriteString("|------------|--------|--------|-----|------|---------|------------|---------|----------|-------|--------------|\n")
		for _, b := range r.Bonds {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %.2f%% | %.4f | %.4f | %.2f | %.4f | %d |\n",
				b.Bond.InstrumentID, b.Bond.Ticker,
				b.TotalTrades, b.ProfitableTrades, b.LosingTrades, b.WinRate*100,
				b.TotalNetProfit, b.AvgNetProfit, b.AvgHoldingDays, b.AvgProfitPercent, b.SkippedDays))
		}
	} else {
		sb.WriteString("No bonds simulated.\n")
	}
	sb.WriteString("\n")

	if withTrades {
		for _, b := range r.Bonds {
			if len(b.Trades) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("### Trades: %s\n\n", b.Bond.InstrumentID))
			sb.WriteString("| Buy Date | Buy | Target | Sell Date | Sell | Days | Exit | Net | Net % |\n")
			sb.WriteString("|----------|-----|--------|-----------|------|------|------|-----|-------|\n")
			for _, t := range b.Trades {
				sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %s | %.4f | %d | %s | %.4f | %.4f |\n",
					t.BuyDate.Format(dateLayout), t.BuyPrice, t.TargetSellPrice,
					t.SellDate.Format(dateLayout), t.SellPrice, t.HoldingDays, t.ExitReason,
					t.NetProfit, t.NetProfitPercent))
			}
			sb.WriteString("\n")
		}
	}

	// Data quality
	if len(r.Skipped) > 0 || len(r.FilteredByVolume) > 0 {
		sb.WriteString("## Data Quality\n\n")
		for _, s := range r.Skipped {
			sb.WriteString(fmt.Sprintf("- %s excluded: %s\n", s.InstrumentID, s.Reason))
		}
		if len(r.FilteredByVolume) > 0 {
			sb.WriteString(fmt.Sprintf("- Below volume threshold: %s\n", strings.Join(r.FilteredByVolume, ", ")))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// AnalysisRow pairs a scored bond with its price recommendation.
// Recommendation is nil when the price formula rejected the inputs.
type AnalysisRow struct {
	Result         *domain.AnalysisResult
	Recommendation *domain.PriceRecommendation
}

// RenderAnalysisMarkdown renders scored bonds as Markdown string, in the order given.
func RenderAnalysisMarkdown(rows []AnalysisRow, asOf, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Bond Analysis\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s | As of: %s\n\n", generatedAt.Format(time.RFC3339), asOf.Format(dateLayout)))

	if len(rows) == 0 {
		sb.WriteString("No bonds matched.\n")
		return sb.String()
	}

	sb.WriteString("| # | Instrument | Ticker | Risk | Score | Price | Avg | Vol | Trend | Change % | Buy | Sell | Discount % |\n")
	sb.WriteString("|---|------------|--------|------|-------|-------|-----|-----|-------|----------|-----|------|------------|\n")
	for i, row := range rows {
		res := row.Result
		buy, sell, discount := "-", "-", "-"
		if rec := row.Recommendation; rec != nil {
			buy = fmt.Sprintf("%.4f", rec.BuyPrice)
			sell = fmt.Sprintf("%.4f", rec.SellPrice)
			discount = fmt.Sprintf("%.2f", rec.DiscountPercent)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.2f | %.4f | %.4f | %.4f | %.4f | %.2f | %s | %s | %s |\n",
			i+1, res.Bond.InstrumentID, res.Bond.Ticker, res.Bond.RiskLevel,
			res.Score, res.CurrentPrice, res.AvgPrice, res.Volatility, res.Trend, res.PriceChangePercent,
			buy, sell, discount))
	}
	sb.WriteString("\n")

	return sb.String()
}
