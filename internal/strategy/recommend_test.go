package strategy

import (
	"errors"
	"math"
	"testing"

	"bond-reversion-lab/internal/domain"
)

func defaultParams() domain.StrategyParameters {
	return domain.StrategyParameters{
		VolatilityMultiplier:     1.2,
		ProfitMarginFraction:     0.008,
		BrokerCommissionFraction: 0.0004,
		AnalysisPeriodMonths:     4,
	}
}

func TestRecommend_WorkedExample(t *testing.T) {
	rec, err := Recommend(100, 5, 99, defaultParams())
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"BuyPrice", rec.BuyPrice, 94},
		{"BuyCommission", rec.BuyCommission, 0.0376},
		{"SellCommission", rec.SellCommission, 0.0379008},
		{"SellPrice", rec.SellPrice, 94.8275008},
		{"NetProfit", rec.NetProfit, 0.752},
		{"NetProfitPercent", rec.NetProfitPercent, 0.8},
		{"DiscountPercent", rec.DiscountPercent, 6},
		{"TotalCommissions", rec.TotalCommissions, 0.0755008},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %.10f, want %.10f", c.name, c.got, c.want)
		}
	}
	if rec.AvgPrice != 99 || rec.CurrentPrice != 100 || rec.Volatility != 5 {
		t.Error("inputs must be carried into the recommendation")
	}
}

func TestRecommend_MarginIdentity(t *testing.T) {
	params := defaultParams()

	for _, price := range []float64{0.5, 10, 87.3, 100, 1000, 25000} {
		for _, vol := range []float64{0, 0.001, 0.1, 1.5} {
			for _, margin := range []float64{0, 0.002, 0.008, 0.05} {
				params.ProfitMarginFraction = margin

				rec, err := Recommend(price, vol*price/100, 0, params)
				if err != nil {
					t.Fatalf("Recommend(%v, %v): %v", price, vol, err)
				}
				ratio := rec.NetProfit / rec.BuyPrice
				if math.Abs(ratio-margin) > 1e-9 {
					t.Errorf("price=%v vol=%v margin=%v: net/buy = %v", price, vol, margin, ratio)
				}
			}
		}
	}
}

func TestRecommend_EntryDiscount(t *testing.T) {
	params := defaultParams()
	for _, k := range []float64{0.1, 1.2, 3} {
		params.VolatilityMultiplier = k
		for _, vol := range []float64{0.01, 0.5, 2} {
			rec, err := Recommend(100, vol, 100, params)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if rec.BuyPrice >= rec.CurrentPrice {
				t.Errorf("k=%v vol=%v: buy %v not below current %v", k, vol, rec.BuyPrice, rec.CurrentPrice)
			}
		}
	}
}

func TestRecommend_InvalidInputs(t *testing.T) {
	tests := []struct {
		name       string
		price, vol float64
		params     domain.StrategyParameters
	}{
		{"zero price", 0, 1, defaultParams()},
		{"negative price", -5, 1, defaultParams()},
		{"non-positive buy price", 10, 10, defaultParams()},
		{"negative volatility", 100, -1, defaultParams()},
		{"commission out of range", 100, 1, domain.StrategyParameters{VolatilityMultiplier: 1, BrokerCommissionFraction: 1, AnalysisPeriodMonths: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Recommend(tt.price, tt.vol, 0, tt.params)
			if !errors.Is(err, domain.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestExit(t *testing.T) {
	e := Exit(94, 0.0376, 95, 0.0004)

	if math.Abs(e.SellCommission-0.038) > 1e-12 {
		t.Errorf("SellCommission = %v, want 0.038", e.SellCommission)
	}
	if math.Abs(e.ProfitBeforeCommission-1) > 1e-12 {
		t.Errorf("ProfitBeforeCommission = %v, want 1", e.ProfitBeforeCommission)
	}
	if math.Abs(e.NetProfit-0.9244) > 1e-12 {
		t.Errorf("NetProfit = %v, want 0.9244", e.NetProfit)
	}
	if math.Abs(e.NetProfitPercent-0.9244/94*100) > 1e-12 {
		t.Errorf("NetProfitPercent = %v", e.NetProfitPercent)
	}
}
