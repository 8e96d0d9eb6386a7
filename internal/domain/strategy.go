package domain

import "fmt"

// Default strategy parameters.
const (
	DefaultVolatilityMultiplier     = 1.2
	DefaultProfitMarginFraction     = 0.008
	DefaultBrokerCommissionFraction = 0.0004
	DefaultAnalysisPeriodMonths     = 4
)

// StrategyParameters holds the tunable inputs of the price formula.
// Populated from the ParameterStore at run start.
type StrategyParameters struct {
	VolatilityMultiplier     float64 // k
	ProfitMarginFraction     float64 // net margin per round trip
	BrokerCommissionFraction float64 // per side
	AnalysisPeriodMonths     int     // lookback window
}

// DefaultStrategyParameters returns the documented defaults.
func DefaultStrategyParameters() StrategyParameters {
	return StrategyParameters{
		VolatilityMultiplier:     DefaultVolatilityMultiplier,
		ProfitMarginFraction:     DefaultProfitMarginFraction,
		BrokerCommissionFraction: DefaultBrokerCommissionFraction,
		AnalysisPeriodMonths:     DefaultAnalysisPeriodMonths,
	}
}

// Validate checks parameter bounds.
func (p StrategyParameters) Validate() error {
	if p.VolatilityMultiplier < 0 {
		return fmt.Errorf("%w: volatility multiplier must be >= 0, got %v", ErrInvalidParameter, p.VolatilityMultiplier)
	}
	if p.ProfitMarginFraction < 0 {
		return fmt.Errorf("%w: profit margin must be >= 0, got %v", ErrInvalidParameter, p.ProfitMarginFraction)
	}
	if p.BrokerCommissionFraction < 0 || p.BrokerCommissionFraction >= 1 {
		return fmt.Errorf("%w: commission fraction must be in [0, 1), got %v", ErrInvalidParameter, p.BrokerCommissionFraction)
	}
	if p.AnalysisPeriodMonths < 1 {
		return fmt.Errorf("%w: analysis period must be >= 1 month, got %d", ErrInvalidParameter, p.AnalysisPeriodMonths)
	}
	return nil
}

// PriceRecommendation is the commission-aware entry/exit price pair.
type PriceRecommendation struct {
	CurrentPrice float64
	Volatility   float64
	AvgPrice     float64

	BuyPrice        float64
	SellPrice       float64
	DiscountPercent float64 // buy discount below current price

	BuyCommission    float64
	SellCommission   float64
	TotalCommissions float64

	NetProfit        float64 // equals target profit by construction
	NetProfitPercent float64 // equals profit margin * 100
}
