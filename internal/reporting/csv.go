package reporting

import (
	"fmt"
	"strings"

	"bond-reversion-lab/internal/domain"
)

// RenderTradesCSV renders every trade of the report as CSV string, bond by bond.
func RenderTradesCSV(r *domain.BacktestReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,run_id,instrument_id,ticker,buy_date,buy_price,entry_volatility,buy_commission,")
	sb.WriteString("target_sell_price,sell_date,sell_price,sell_commission,exit_reason,holding_days,")
	sb.WriteString("profit_before_commission,net_profit,net_profit_percent\n")

	// Rows
	for _, b := range r.Bonds {
		for _, t := range b.Trades {
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%.6f,%.6f,%.6f,%.6f,%s,%.6f,%.6f,%s,%d,%.6f,%.6f,%.4f\n",
				t.TradeID,
				t.RunID,
				t.InstrumentID,
				b.Bond.Ticker,
				t.BuyDate.Format(dateLayout),
				t.BuyPrice,
				t.EntryVolatility,
				t.BuyCommission,
				t.TargetSellPrice,
				t.SellDate.Format(dateLayout),
				t.SellPrice,
				t.SellCommission,
				t.ExitReason,
				t.HoldingDays,
				t.ProfitBeforeCommission,
				t.NetProfit,
				t.NetProfitPercent,
			))
		}
	}

	return sb.String()
}

// RenderBondSummaryCSV renders one row per bond with its aggregate metrics.
func RenderBondSummaryCSV(r *domain.BacktestReport) string {
	var sb strings.Builder

	sb.WriteString("instrument_id,ticker,total_trades,profitable_trades,losing_trades,win_rate,")
	sb.WriteString("total_net_profit,avg_net_profit,avg_holding_days,avg_profit_percent,skipped_days\n")

	for _, b := range r.Bonds {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.2f,%.4f,%d\n",
			b.Bond.InstrumentID,
			b.Bond.Ticker,
			b.TotalTrades,
			b.ProfitableTrades,
			b.LosingTrades,
			b.WinRate,
			b.TotalNetProfit,
			b.AvgNetProfit,
			b.AvgHoldingDays,
			b.AvgProfitPercent,
			b.SkippedDays,
		))
	}

	return sb.String()
}
