package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/advisor"
)

// Adviser computes live recommendations.
type Adviser interface {
	Advise(ctx context.Context, instrumentID string) (*advisor.Advice, error)
}

type RecommendationHandler struct {
	Advisor Adviser
}

type recommendationView struct {
	InstrumentID     string          `json:"instrument_id"`
	Ticker           string          `json:"ticker,omitempty"`
	CurrentPrice     float64         `json:"current_price"`
	AvgPrice         float64         `json:"avg_price"`
	Volatility       float64         `json:"volatility"`
	Score            float64         `json:"score"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	DiscountPercent  float64         `json:"discount_percent"`
	TotalCommissions float64         `json:"total_commissions"`
	NetProfitPercent float64         `json:"net_profit_percent"`
}

func (h *RecommendationHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/recommendations/:instrument", h.get)
}

func (h *RecommendationHandler) get(c *gin.Context) {
	advice, err := h.Advisor.Advise(c.Request.Context(), c.Param("instrument"))
	if err != nil {
		fail(c, err)
		return
	}
	a, rec := advice.Analysis, advice.Recommendation
	Ok(c, recommendationView{
		InstrumentID:     advice.Target.InstrumentID,
		Ticker:           a.Bond.Ticker,
		CurrentPrice:     rec.CurrentPrice,
		AvgPrice:         rec.AvgPrice,
		Volatility:       rec.Volatility,
		Score:            a.Score,
		BuyPrice:         advice.Target.BuyPrice,
		SellPrice:        advice.Target.SellPrice,
		DiscountPercent:  rec.DiscountPercent,
		TotalCommissions: rec.TotalCommissions,
		NetProfitPercent: rec.NetProfitPercent,
	}, nil)
}
