package tracker

import (
	"context"

	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/domain"
)

// SubmitRequest is a limit order handed to the broker.
// OrderID is the local id; brokers treat it as an idempotency key.
type SubmitRequest struct {
	OrderID      string
	AccountID    string
	InstrumentID string
	Direction    domain.Direction
	Lots         int64
	Price        decimal.Decimal
}

// Gateway is the broker order API.
// Every returned OrderState is authoritative and overwrites local fields.
type Gateway interface {
	Submit(ctx context.Context, req SubmitRequest) (domain.OrderState, error)
	Status(ctx context.Context, accountID, exchangeID string) (domain.OrderState, error)
	Cancel(ctx context.Context, accountID, exchangeID string) (domain.OrderState, error)
}
