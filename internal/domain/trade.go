package domain

import "time"

// MaxHoldingDays is the holding period after which a backtest position is closed regardless of price.
const MaxHoldingDays = 30

// ExitReason explains why a backtest trade was closed.
type ExitReason string

// Exit reason codes
const (
	ExitReasonTargetReached ExitReason = "TARGET_REACHED"
	ExitReasonTimeout       ExitReason = "TIMEOUT"
	ExitReasonEndOfPeriod   ExitReason = "END_OF_PERIOD" // forced liquidation at end date
)

// Trade represents one simulated round trip.
// Corresponds to backtest_trades table in PostgreSQL.
type Trade struct {
	TradeID      string // deterministic hash
	RunID        string // backtest run that produced the trade
	InstrumentID string

	// Entry
	BuyDate         time.Time
	BuyPrice        float64
	EntryVolatility float64
	BuyCommission   float64
	TargetSellPrice float64

	// Exit
	SellDate       time.Time
	SellPrice      float64
	SellCommission float64
	ExitReason     ExitReason

	// Outcome
	HoldingDays            int
	ProfitBeforeCommission float64
	NetProfit              float64
	NetProfitPercent       float64
}

// Profitable reports whether the trade made money net of commissions.
func (t *Trade) Profitable() bool {
	return t.NetProfit > 0
}

// BondBacktestResult aggregates the trades of one bond.
type BondBacktestResult struct {
	Bond   BondMetadata
	Trades []Trade

	TotalTrades      int
	ProfitableTrades int
	LosingTrades     int
	WinRate          float64 // profitable / total

	TotalNetProfit              float64
	AvgNetProfit                float64
	TotalProfitBeforeCommission float64
	AvgProfitBeforeCommission   float64
	AvgHoldingDays              float64
	AvgProfitPercent            float64

	SkippedDays int // days dropped because the price formula rejected its inputs
}

// SkippedBond records a bond excluded from a run.
type SkippedBond struct {
	InstrumentID string
	Reason       string
}

// BacktestReport is the run-level aggregate.
type BacktestReport struct {
	RunID                string
	StartDate            time.Time
	EndDate              time.Time
	AnalysisPeriodMonths int
	Parameters           StrategyParameters

	Bonds []BondBacktestResult

	BondCount        int
	BondsWithTrades  int
	TotalTrades      int
	ProfitableTrades int
	LosingTrades     int
	WinRate          float64

	TotalNetProfit              float64
	AvgNetProfit                float64
	TotalProfitBeforeCommission float64
	AvgHoldingDays              float64
	AvgProfitPercent            float64

	ErrorCount       int
	Skipped          []SkippedBond
	FilteredByVolume []string // instrument ids dropped by the volume pre-pass
}
