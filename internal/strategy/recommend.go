package strategy

import (
	"fmt"

	"bond-reversion-lab/internal/domain"
)

// Recommend computes the commission-aware entry/exit price pair.
//
//	buyPrice       = currentPrice - k*volatility
//	buyCommission  = buyPrice * commission
//	targetProfit   = buyPrice * margin
//	sellCommission = (buyPrice + targetProfit) * commission
//	sellPrice      = buyPrice + buyCommission + targetProfit + sellCommission
//
// The net profit of a round trip at (buyPrice, sellPrice) equals targetProfit
// for every volatility and price level.
// avgPrice is carried into the result for display only.
// Returns domain.ErrInvalidParameter when currentPrice or buyPrice is not positive,
// when volatility is negative, or when params fail validation.
func Recommend(currentPrice, volatility, avgPrice float64, params domain.StrategyParameters) (*domain.PriceRecommendation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("%w: current price must be > 0, got %v", domain.ErrInvalidParameter, currentPrice)
	}
	if volatility < 0 {
		return nil, fmt.Errorf("%w: volatility must be >= 0, got %v", domain.ErrInvalidParameter, volatility)
	}

	buyPrice := currentPrice - params.VolatilityMultiplier*volatility
	if buyPrice <= 0 {
		return nil, fmt.Errorf("%w: buy price must be > 0, got %v (price %v, volatility %v)",
			domain.ErrInvalidParameter, buyPrice, currentPrice, volatility)
	}

	commission := params.BrokerCommissionFraction
	buyCommission := buyPrice * commission
	targetProfit := buyPrice * params.ProfitMarginFraction
	sellCommission := (buyPrice + targetProfit) * commission
	sellPrice := buyPrice + buyCommission + targetProfit + sellCommission

	totalCommissions := buyCommission + sellCommission
	netProfit := (sellPrice - buyPrice) - totalCommissions

	return &domain.PriceRecommendation{
		CurrentPrice:     currentPrice,
		Volatility:       volatility,
		AvgPrice:         avgPrice,
		BuyPrice:         buyPrice,
		SellPrice:        sellPrice,
		DiscountPercent:  (currentPrice - buyPrice) / currentPrice * 100,
		BuyCommission:    buyCommission,
		SellCommission:   sellCommission,
		TotalCommissions: totalCommissions,
		NetProfit:        netProfit,
		NetProfitPercent: netProfit / buyPrice * 100,
	}, nil
}

// ExitEconomics holds the outcome of closing a position at a given price.
type ExitEconomics struct {
	SellCommission         float64
	ProfitBeforeCommission float64
	NetProfit              float64
	NetProfitPercent       float64
}

// Exit computes the economics of selling at sellPrice a position bought at buyPrice.
// The sell commission is charged on the actual sell price.
func Exit(buyPrice, buyCommission, sellPrice, commissionFraction float64) ExitEconomics {
	sellCommission := sellPrice * commissionFraction
	gross := sellPrice - buyPrice
	net := gross - (buyCommission + sellCommission)

	pct := 0.0
	if buyPrice != 0 {
		pct = net / buyPrice * 100
	}

	return ExitEconomics{
		SellCommission:         sellCommission,
		ProfitBeforeCommission: gross,
		NetProfit:              net,
		NetProfitPercent:       pct,
	}
}
