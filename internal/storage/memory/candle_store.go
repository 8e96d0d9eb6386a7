package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.Candle // instrument_id -> date key -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]map[string]*domain.Candle),
	}
}

// candleKey generates the per-instrument key of a candle.
func candleKey(date time.Time) string {
	return domain.DateOf(date).Format("2006-01-02")
}

// InsertBulk adds multiple candles. Fails entire batch on duplicate.
// Candle dates are truncated to the UTC day.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(candles))

	// First pass: check for duplicates (existing + intra-batch)
	for _, c := range candles {
		if c == nil || c.InstrumentID == "" || c.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Date)

		if _, exists := s.data[c.InstrumentID][key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKey := fmt.Sprintf("%s|%s", c.InstrumentID, key)
		if _, exists := batchKeys[batchKey]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[batchKey] = struct{}{}
	}

	// Second pass: insert all
	for _, c := range candles {
		series, ok := s.data[c.InstrumentID]
		if !ok {
			series = make(map[string]*domain.Candle)
			s.data[c.InstrumentID] = series
		}
		candleCopy := *c
		candleCopy.Date = domain.DateOf(c.Date)
		series[candleKey(c.Date)] = &candleCopy
	}

	return nil
}

// GetCandles retrieves candles for an instrument within [from, to] (inclusive), ordered by date ASC.
func (s *CandleStore) GetCandles(_ context.Context, instrumentID string, from, to time.Time) ([]*domain.Candle, error) {
	from = domain.DateOf(from)
	to = domain.DateOf(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data[instrumentID] {
		if !c.Date.Before(from) && !c.Date.After(to) {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
