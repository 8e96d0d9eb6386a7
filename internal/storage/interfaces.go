package storage

import (
	"context"
	"time"

	"bond-reversion-lab/internal/domain"
)

// CandleSeriesProvider supplies daily candles.
type CandleSeriesProvider interface {
	// GetCandles retrieves candles for an instrument dated within [from, to] (inclusive), ordered by date ASC.
	// Returns an empty slice (not ErrNotFound) when nothing matches.
	GetCandles(ctx context.Context, instrumentID string, from, to time.Time) ([]*domain.Candle, error)
}

// CandleStore provides access to candles storage.
type CandleStore interface {
	CandleSeriesProvider

	// InsertBulk adds multiple candles atomically. Fails entire batch on any duplicate (instrument_id, date).
	InsertBulk(ctx context.Context, candles []*domain.Candle) error
}

// BondUniverseProvider supplies bond metadata.
type BondUniverseProvider interface {
	// ListBonds returns every known bond ordered by instrument_id ASC.
	ListBonds(ctx context.Context) ([]domain.BondMetadata, error)

	// GetBond retrieves one bond. Returns ErrNotFound if not exists.
	GetBond(ctx context.Context, instrumentID string) (*domain.BondMetadata, error)
}

// BondStore provides access to bonds storage.
type BondStore interface {
	BondUniverseProvider

	// Upsert inserts or replaces bond metadata keyed by instrument_id.
	Upsert(ctx context.Context, b *domain.BondMetadata) error
}

// ParameterStore provides access to string-valued strategy parameters.
type ParameterStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set inserts or replaces a value.
	Set(ctx context.Context, key, value string) error
}

// OrderUpdateFunc mutates an order inside an atomic read-modify-write.
// Returning an error aborts the update and leaves the stored order unchanged.
type OrderUpdateFunc func(o *domain.Order) error

// OrderStore provides access to orders storage.
type OrderStore interface {
	// Insert adds a new order. Returns ErrDuplicateKey if id exists,
	// or if another order already has the same non-empty parent_order_id.
	Insert(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by its local id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// FindByParentID retrieves the order whose parent_order_id equals parentID.
	// Returns ErrNotFound if not exists.
	FindByParentID(ctx context.Context, parentID string) (*domain.Order, error)

	// ListActive returns orders in PENDING, NEW or PARTIALLY_FILLED, ordered by created_at ASC, id ASC.
	ListActive(ctx context.Context) ([]*domain.Order, error)

	// ListUnpairedFilledBuys returns FILLED buy orders that no order references as parent.
	ListUnpairedFilledBuys(ctx context.Context) ([]*domain.Order, error)

	// List returns the most recent orders, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*domain.Order, error)

	// Update atomically loads the order, applies fn and persists the result.
	// Returns the updated order, or ErrNotFound if not exists.
	Update(ctx context.Context, id string, fn OrderUpdateFunc) (*domain.Order, error)
}

// SellTargetStore provides access to sell_targets storage.
type SellTargetStore interface {
	// Upsert inserts or replaces the sell target of an instrument.
	Upsert(ctx context.Context, t *domain.SellTarget) error

	// Get retrieves the sell target of an instrument. Returns ErrNotFound if not exists.
	Get(ctx context.Context, instrumentID string) (*domain.SellTarget, error)
}

// TradeStore provides access to backtest_trades storage.
type TradeStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate trade_id.
	InsertBulk(ctx context.Context, trades []domain.Trade) error

	// GetByRunID retrieves all trades of a run ordered by instrument_id ASC, buy_date ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.Trade, error)
}
