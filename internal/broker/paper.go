// Package broker provides tracker.Gateway implementations.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
	"bond-reversion-lab/internal/tracker"
)

// ErrUnknownOrder is returned for exchange ids the gateway never issued.
var ErrUnknownOrder = errors.New("unknown exchange order")

// QuoteSource supplies the market price a paper order is matched against.
type QuoteSource interface {
	LastPrice(ctx context.Context, instrumentID string) (decimal.Decimal, error)
}

type paperOrder struct {
	req   tracker.SubmitRequest
	state domain.OrderState
}

// PaperGateway matches limit orders in process.
// A BUY fills when the market price is at or below its limit, a SELL when at or above.
// Submissions are idempotent on the local order id.
type PaperGateway struct {
	mu       sync.Mutex
	seq      int
	byClient map[string]string      // local order id -> exchange id
	orders   map[string]*paperOrder // exchange id -> order
	prices   map[string]decimal.Decimal
	quotes   QuoteSource
}

// NewPaperGateway creates a paper gateway. quotes may be nil; prices then come only from SetPrice.
func NewPaperGateway(quotes QuoteSource) *PaperGateway {
	return &PaperGateway{
		byClient: make(map[string]string),
		orders:   make(map[string]*paperOrder),
		prices:   make(map[string]decimal.Decimal),
		quotes:   quotes,
	}
}

// SetPrice sets the market price of an instrument.
func (g *PaperGateway) SetPrice(instrumentID string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[instrumentID] = price
}

// Fill executes lots of an open order at its limit price.
func (g *PaperGateway) Fill(exchangeID string, lots int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	o, ok := g.orders[exchangeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, exchangeID)
	}
	if o.state.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", domain.ErrInvalidParameter, exchangeID, o.state.Status)
	}
	execute(o, lots, o.req.Price)
	return nil
}

// Submit implements tracker.Gateway.
func (g *PaperGateway) Submit(ctx context.Context, req tracker.SubmitRequest) (domain.OrderState, error) {
	if req.Lots <= 0 || !req.Price.IsPositive() {
		return domain.OrderState{}, fmt.Errorf("%w: lots %d price %s", domain.ErrInvalidParameter, req.Lots, req.Price)
	}
	if err := ctx.Err(); err != nil {
		return domain.OrderState{}, err
	}

	g.mu.Lock()
	if exchangeID, ok := g.byClient[req.OrderID]; ok {
		state := g.orders[exchangeID].state
		g.mu.Unlock()
		return state, nil
	}
	g.seq++
	exchangeID := fmt.Sprintf("paper-%06d", g.seq)
	o := &paperOrder{
		req:   req,
		state: domain.OrderState{ExchangeID: exchangeID, Status: domain.OrderStatusNew},
	}
	g.byClient[req.OrderID] = exchangeID
	g.orders[exchangeID] = o
	g.match(o)
	state := o.state
	g.mu.Unlock()

	return state, nil
}

// Status implements tracker.Gateway.
func (g *PaperGateway) Status(ctx context.Context, _ string, exchangeID string) (domain.OrderState, error) {
	g.mu.Lock()
	o, ok := g.orders[exchangeID]
	if !ok {
		g.mu.Unlock()
		return domain.OrderState{}, fmt.Errorf("%w: %s", ErrUnknownOrder, exchangeID)
	}
	instrumentID := o.req.InstrumentID
	g.mu.Unlock()

	if g.quotes != nil {
		price, err := g.quotes.LastPrice(ctx, instrumentID)
		if err != nil && !errors.Is(err, domain.ErrDataUnavailable) {
			return domain.OrderState{}, fmt.Errorf("%w: quote %s: %w", domain.ErrExternalService, instrumentID, err)
		}
		if err == nil {
			g.SetPrice(instrumentID, price)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.match(o)
	return o.state, nil
}

// Cancel implements tracker.Gateway. Filled orders stay filled.
func (g *PaperGateway) Cancel(_ context.Context, _ string, exchangeID string) (domain.OrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	o, ok := g.orders[exchangeID]
	if !ok {
		return domain.OrderState{}, fmt.Errorf("%w: %s", ErrUnknownOrder, exchangeID)
	}
	if !o.state.Status.IsTerminal() {
		o.state.Status = domain.OrderStatusCancelled
	}
	return o.state, nil
}

// match fills the remainder of o if the market crosses its limit. Caller holds g.mu.
func (g *PaperGateway) match(o *paperOrder) {
	if o.state.Status.IsTerminal() {
		return
	}
	price, ok := g.prices[o.req.InstrumentID]
	if !ok {
		return
	}
	crossed := false
	switch o.req.Direction {
	case domain.DirectionBuy:
		crossed = price.LessThanOrEqual(o.req.Price)
	case domain.DirectionSell:
		crossed = price.GreaterThanOrEqual(o.req.Price)
	}
	if crossed {
		execute(o, o.req.Lots-o.state.ExecutedLots, price)
	}
}

// execute adds lots at price and recomputes the average execution price.
func execute(o *paperOrder, lots int64, price decimal.Decimal) {
	remaining := o.req.Lots - o.state.ExecutedLots
	if lots > remaining {
		lots = remaining
	}
	if lots <= 0 {
		return
	}
	filled := decimal.NewFromInt(o.state.ExecutedLots)
	added := decimal.NewFromInt(lots)
	total := filled.Add(added)
	o.state.AvgExecPrice = o.state.AvgExecPrice.Mul(filled).Add(price.Mul(added)).Div(total)
	o.state.ExecutedLots += lots
	if o.state.ExecutedLots >= o.req.Lots {
		o.state.Status = domain.OrderStatusFilled
	} else {
		o.state.Status = domain.OrderStatusPartiallyFilled
	}
}

// CandleQuotes prices paper orders at the latest daily close.
type CandleQuotes struct {
	Candles  storage.CandleSeriesProvider
	Lookback time.Duration
	Now      func() time.Time
}

// LastPrice implements QuoteSource.
func (q CandleQuotes) LastPrice(ctx context.Context, instrumentID string) (decimal.Decimal, error) {
	now := time.Now().UTC()
	if q.Now != nil {
		now = q.Now()
	}
	lookback := q.Lookback
	if lookback <= 0 {
		lookback = 14 * 24 * time.Hour
	}
	candles, err := q.Candles.GetCandles(ctx, instrumentID, now.Add(-lookback), now)
	if err != nil {
		return decimal.Zero, err
	}
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no recent candles for %s", domain.ErrDataUnavailable, instrumentID)
	}
	return candles[len(candles)-1].Close, nil
}

var (
	_ tracker.Gateway = (*PaperGateway)(nil)
	_ QuoteSource     = CandleQuotes{}
)
