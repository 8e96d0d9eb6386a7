// Package advisor produces live buy/sell recommendations and places buys through the tracker.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/params"
	"bond-reversion-lab/internal/scoring"
	"bond-reversion-lab/internal/storage"
	"bond-reversion-lab/internal/strategy"
	"bond-reversion-lab/internal/tracker"
)

// PricePlaces is the precision of persisted sell targets and order prices.
const PricePlaces = 4

// OrderPlacer places limit orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req tracker.PlaceRequest) (*domain.Order, error)
}

// Advice is a recommendation together with the target persisted for it.
type Advice struct {
	Analysis       *domain.AnalysisResult
	Recommendation *domain.PriceRecommendation
	Target         domain.SellTarget
}

// Options configures an Advisor.
type Options struct {
	Bonds   storage.BondUniverseProvider
	Candles storage.CandleSeriesProvider
	Params  storage.ParameterStore
	Targets storage.SellTargetStore
	Orders  OrderPlacer
	Logger  *zap.Logger
	Now     func() time.Time
}

// Advisor connects scoring, pricing and order placement for the live path.
type Advisor struct {
	bonds   storage.BondUniverseProvider
	engine  *scoring.Engine
	params  storage.ParameterStore
	targets storage.SellTargetStore
	orders  OrderPlacer
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an advisor. Orders may be nil when only Advise is used.
func New(opts Options) *Advisor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Advisor{
		bonds:   opts.Bonds,
		engine:  scoring.NewEngine(opts.Candles, opts.Logger),
		params:  opts.Params,
		targets: opts.Targets,
		orders:  opts.Orders,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// Advise analyzes the bond over the configured window, prices it and persists the sell target.
// The buy price is rounded down and the sell price up, so the margin never shrinks.
func (a *Advisor) Advise(ctx context.Context, instrumentID string) (*Advice, error) {
	p, err := params.LoadStrategyParameters(ctx, a.params)
	if err != nil {
		return nil, err
	}

	bond, err := a.bonds.GetBond(ctx, instrumentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown bond %s", domain.ErrDataUnavailable, instrumentID)
		}
		return nil, fmt.Errorf("load bond %s: %w: %w", instrumentID, domain.ErrExternalService, err)
	}

	now := a.now()
	analysis, err := a.engine.AnalyzeBond(ctx, *bond, now, p.AnalysisPeriodMonths)
	if err != nil {
		return nil, err
	}

	rec, err := strategy.Recommend(analysis.CurrentPrice, analysis.Volatility, analysis.AvgPrice, p)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", instrumentID, err)
	}

	target := domain.SellTarget{
		InstrumentID: instrumentID,
		BuyPrice:     decimal.NewFromFloat(rec.BuyPrice).RoundFloor(PricePlaces),
		SellPrice:    decimal.NewFromFloat(rec.SellPrice).RoundCeil(PricePlaces),
		ComputedAt:   now,
	}
	if !target.BuyPrice.IsPositive() {
		return nil, fmt.Errorf("%w: rounded buy price of %s is %s", domain.ErrInvalidParameter, instrumentID, target.BuyPrice)
	}
	if err := a.targets.Upsert(ctx, &target); err != nil {
		return nil, fmt.Errorf("%w: save sell target %s: %w", domain.ErrPersistence, instrumentID, err)
	}

	a.logger.Info("recommendation computed",
		zap.String("instrument_id", instrumentID),
		zap.Float64("current_price", rec.CurrentPrice),
		zap.Float64("volatility", rec.Volatility),
		zap.String("buy_price", target.BuyPrice.String()),
		zap.String("sell_price", target.SellPrice.String()),
	)

	return &Advice{Analysis: analysis, Recommendation: rec, Target: target}, nil
}

// PlaceBuy advises on the bond and places a BUY of lots at the recommended price.
// clientKey makes the placement idempotent.
func (a *Advisor) PlaceBuy(ctx context.Context, instrumentID string, lots int64, clientKey string) (*domain.Order, *Advice, error) {
	if a.orders == nil {
		return nil, nil, errors.New("advisor has no order placer")
	}
	accountID, err := params.LoadAccountID(ctx, a.params)
	if err != nil {
		return nil, nil, err
	}

	advice, err := a.Advise(ctx, instrumentID)
	if err != nil {
		return nil, nil, err
	}

	order, err := a.orders.PlaceOrder(ctx, tracker.PlaceRequest{
		ClientKey:    clientKey,
		AccountID:    accountID,
		InstrumentID: instrumentID,
		Direction:    domain.DirectionBuy,
		Lots:         lots,
		Price:        advice.Target.BuyPrice,
	})
	return order, advice, err
}
