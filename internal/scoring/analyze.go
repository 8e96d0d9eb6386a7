package scoring

import (
	"fmt"
	"math"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/lookup"
)

// Score components.
const (
	volatilityScale   = 10.0
	volatilityEpsilon = 0.001
	trendScale        = 100.0
	collateralBonus   = 50.0
)

// Analyze computes the scoring metrics of a bond over candles.
// candles must be sorted by date ASC and cover the analysis window.
// Returns domain.ErrDataUnavailable when candles is empty.
func Analyze(bond domain.BondMetadata, candles []*domain.Candle) (*domain.AnalysisResult, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("analyze %s: %w", bond.InstrumentID, domain.ErrDataUnavailable)
	}

	closes := lookup.Closes(candles)
	volatility := StdDev(closes)
	trend := Slope(closes)
	first := closes[0]
	current := closes[len(closes)-1]

	changePercent := 0.0
	if first != 0 {
		changePercent = (current - first) / first * 100
	}

	return &domain.AnalysisResult{
		Bond:               bond,
		Volatility:         volatility,
		AvgPrice:           Mean(closes),
		CurrentPrice:       current,
		PriceChangePercent: changePercent,
		Trend:              trend,
		Score:              Score(volatility, trend, &bond),
		CandleCount:        len(candles),
		AsOf:               candles[len(candles)-1].Date,
	}, nil
}

// Score ranks a bond: low volatility, positive trend, collateral eligibility and low risk score higher.
func Score(volatility, trend float64, bond *domain.BondMetadata) float64 {
	score := volatilityScale/(volatility+volatilityEpsilon) + math.Max(0, trend*trendScale)
	if bond.CollateralEligible() {
		score += collateralBonus
	}
	return score + riskBonus(bond.RiskLevel)
}

func riskBonus(level domain.RiskLevel) float64 {
	switch level {
	case domain.RiskLevelLow:
		return 30
	case domain.RiskLevelModerate:
		return 15
	default:
		return 0
	}
}
