package domain

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the broker-assigned risk grade of a bond.
type RiskLevel int

// Risk level constants.
const (
	RiskLevelUnspecified RiskLevel = iota
	RiskLevelLow
	RiskLevelModerate
	RiskLevelHigh
)

// String returns the canonical name of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLevelLow:
		return "LOW"
	case RiskLevelModerate:
		return "MODERATE"
	case RiskLevelHigh:
		return "HIGH"
	default:
		return "UNSPECIFIED"
	}
}

// ParseRiskLevel maps a stored or broker-provided name onto RiskLevel.
// Accepts the broker's RISK_LEVEL_ prefixed names as well.
func ParseRiskLevel(s string) (RiskLevel, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RISK_LEVEL_")
	switch name {
	case "LOW":
		return RiskLevelLow, nil
	case "MODERATE", "MEDIUM":
		return RiskLevelModerate, nil
	case "HIGH":
		return RiskLevelHigh, nil
	case "", "UNSPECIFIED":
		return RiskLevelUnspecified, nil
	default:
		return RiskLevelUnspecified, fmt.Errorf("%w: unknown risk level %q", ErrInvalidParameter, s)
	}
}

// BondMetadata describes a tradable bond.
// Corresponds to bonds table in PostgreSQL.
type BondMetadata struct {
	InstrumentID          string     // FIGI
	Ticker                string     // exchange ticker
	Name                  string     // display name
	Currency              string     // nominal currency, e.g. "rub"
	MaturityDate          *time.Time // nil for perpetual or unknown
	RiskLevel             RiskLevel  // broker risk grade
	Amortized             bool       // amortization flag
	CollateralEligibility float64    // "dlong"; > 0 means accepted as collateral
	AvgDailyVolume        int64      // average daily traded volume (lots)
}

// CollateralEligible reports whether the bond is accepted as margin collateral.
func (b *BondMetadata) CollateralEligible() bool {
	return b.CollateralEligibility > 0
}

// FilterCriteria selects bonds from the universe.
type FilterCriteria struct {
	Currency                  string // empty matches any currency
	ExcludeAmortized          bool
	MinDaysToMaturity         int
	MaxMonthsToMaturity       int
	RequireCollateralEligible bool
	ExcludeHighRisk           bool
	MinAvgDailyVolume         int64
}

// Validate checks filter bounds.
func (c FilterCriteria) Validate() error {
	if c.MinDaysToMaturity < 0 {
		return fmt.Errorf("%w: min days to maturity must be >= 0, got %d", ErrInvalidParameter, c.MinDaysToMaturity)
	}
	if c.MaxMonthsToMaturity < 0 {
		return fmt.Errorf("%w: max months to maturity must be >= 0, got %d", ErrInvalidParameter, c.MaxMonthsToMaturity)
	}
	if c.MinAvgDailyVolume < 0 {
		return fmt.Errorf("%w: min average daily volume must be >= 0, got %d", ErrInvalidParameter, c.MinAvgDailyVolume)
	}
	return nil
}

// AnalysisResult holds the scoring metrics of one bond over its analysis window.
type AnalysisResult struct {
	Bond               BondMetadata
	Volatility         float64   // population stddev of closes
	AvgPrice           float64   // mean close
	CurrentPrice       float64   // most recent close
	PriceChangePercent float64   // (current - first) / first * 100
	Trend              float64   // OLS slope of close vs candle index
	Score              float64   // ranking score, higher is better
	CandleCount        int       // candles in the window
	AsOf               time.Time // last candle date
}
