package postgres

import (
	"context"
	"fmt"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// TradeStore implements storage.TradeStore on the backtest_trades table.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest_trades (
			trade_id, run_id, instrument_id,
			buy_date, buy_price, entry_volatility, buy_commission, target_sell_price,
			sell_date, sell_price, sell_commission, exit_reason,
			holding_days, profit_before_commission, net_profit, net_profit_percent
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16
		)
	`

	for _, t := range trades {
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.RunID, t.InstrumentID,
			domain.DateOf(t.BuyDate), t.BuyPrice, t.EntryVolatility, t.BuyCommission, t.TargetSellPrice,
			domain.DateOf(t.SellDate), t.SellPrice, t.SellCommission, string(t.ExitReason),
			t.HoldingDays, t.ProfitBeforeCommission, t.NetProfit, t.NetProfitPercent,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all trades of a run ordered by instrument_id ASC, buy_date ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]domain.Trade, error) {
	query := `
		SELECT
			trade_id, run_id, instrument_id,
			buy_date, buy_price, entry_volatility, buy_commission, target_sell_price,
			sell_date, sell_price, sell_commission, exit_reason,
			holding_days, profit_before_commission, net_profit, net_profit_percent
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY instrument_id ASC, buy_date ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var reason string
		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.InstrumentID,
			&t.BuyDate, &t.BuyPrice, &t.EntryVolatility, &t.BuyCommission, &t.TargetSellPrice,
			&t.SellDate, &t.SellPrice, &t.SellCommission, &reason,
			&t.HoldingDays, &t.ProfitBeforeCommission, &t.NetProfit, &t.NetProfitPercent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.ExitReason = domain.ExitReason(reason)
		t.BuyDate = domain.DateOf(t.BuyDate)
		t.SellDate = domain.DateOf(t.SellDate)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
