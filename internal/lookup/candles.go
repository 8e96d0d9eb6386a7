package lookup

import (
	"errors"
	"time"

	"bond-reversion-lab/internal/domain"
)

// ErrNoCandles is returned when a candle slice is empty or has nothing at or before the target date.
var ErrNoCandles = errors.New("no candle data available")

// CloseAt returns the close of the most recent candle dated at or before target.
// Candles must be ordered by date ASC.
func CloseAt(target time.Time, candles []*domain.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, ErrNoCandles
	}

	for i := len(candles) - 1; i >= 0; i-- {
		if !candles[i].Date.After(target) {
			return candles[i].ClosePrice(), nil
		}
	}

	return 0, ErrNoCandles
}

// Window returns the sub-slice of candles dated within [from, to] (inclusive).
// Candles must be ordered by date ASC. The result shares the backing array.
func Window(candles []*domain.Candle, from, to time.Time) []*domain.Candle {
	lo := searchFirstNotBefore(candles, from)
	hi := searchFirstAfter(candles, to)
	if lo >= hi {
		return nil
	}
	return candles[lo:hi]
}

// Closes extracts close prices as float64 in candle order.
func Closes(candles []*domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.ClosePrice()
	}
	return out
}

// searchFirstNotBefore returns the index of the first candle with Date >= t.
func searchFirstNotBefore(candles []*domain.Candle, t time.Time) int {
	lo, hi := 0, len(candles)
	for lo < hi {
		mid := (lo + hi) / 2
		if candles[mid].Date.Before(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// searchFirstAfter returns the index of the first candle with Date > t.
func searchFirstAfter(candles []*domain.Candle, t time.Time) int {
	lo, hi := 0, len(candles)
	for lo < hi {
		mid := (lo + hi) / 2
		if !candles[mid].Date.After(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
