package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one daily OHLCV bar for an instrument.
// Corresponds to candles table in ClickHouse.
type Candle struct {
	InstrumentID string          // FIGI or other instrument identifier
	Date         time.Time       // trading day, UTC midnight
	Open         decimal.Decimal // opening price
	High         decimal.Decimal // session high
	Low          decimal.Decimal // session low
	Close        decimal.Decimal // closing price
	Volume       int64           // traded volume in lots
}

// ClosePrice returns the close as float64 for statistics.
func (c *Candle) ClosePrice() float64 {
	return c.Close.InexactFloat64()
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
