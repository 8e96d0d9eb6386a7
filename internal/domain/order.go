package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of an order.
type Direction string

// Direction constants
const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// ParseDirection maps a stored or broker-provided name onto Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ORDER_DIRECTION_") {
	case "BUY":
		return DirectionBuy, nil
	case "SELL":
		return DirectionSell, nil
	default:
		return "", fmt.Errorf("%w: unknown order direction %q", ErrInvalidParameter, s)
	}
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order status constants
const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusError           OrderStatus = "ERROR"
)

// ParseOrderStatus maps a stored or broker-provided name onto OrderStatus.
// Broker execution report names (EXECUTION_REPORT_STATUS_*) are accepted.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "EXECUTION_REPORT_STATUS_") {
	case "PENDING":
		return OrderStatusPending, nil
	case "NEW":
		return OrderStatusNew, nil
	case "PARTIALLY_FILLED", "PARTIALLYFILL":
		return OrderStatusPartiallyFilled, nil
	case "FILLED", "FILL":
		return OrderStatusFilled, nil
	case "CANCELLED", "CANCELED":
		return OrderStatusCancelled, nil
	case "ERROR", "REJECTED":
		return OrderStatusError, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidParameter, s)
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusError
}

// IsActive reports whether the tracker still polls orders in this status.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusNew || s == OrderStatusPartiallyFilled
}

// Order is a live broker order tracked locally.
// Corresponds to orders table in PostgreSQL.
type Order struct {
	ID            string // local idempotent id
	ExchangeID    string // assigned on submission, empty until then
	AccountID     string
	InstrumentID  string
	Direction     Direction
	RequestedLots int64
	ExecutedLots  int64
	Price         decimal.Decimal // limit price
	AvgExecPrice  decimal.Decimal // average execution price reported by broker
	Status        OrderStatus
	ParentOrderID string // BUY that triggered this SELL, empty otherwise
	ErrorMessage  string

	CreatedAt   time.Time
	SubmittedAt *time.Time
	ExecutedAt  *time.Time
	CancelledAt *time.Time
	UpdatedAt   time.Time
}

// Filled reports whether the order is completely executed.
func (o *Order) Filled() bool {
	return o.Status == OrderStatusFilled || (o.RequestedLots > 0 && o.ExecutedLots >= o.RequestedLots)
}

// OrderState is the authoritative broker view of an order.
type OrderState struct {
	ExchangeID   string
	Status       OrderStatus
	ExecutedLots int64
	AvgExecPrice decimal.Decimal
	Message      string
}

// SellTarget is the sell price computed together with a buy recommendation.
// The paired SELL of a filled BUY uses it as-is.
// Corresponds to sell_targets table in PostgreSQL.
type SellTarget struct {
	InstrumentID string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	ComputedAt   time.Time
}
