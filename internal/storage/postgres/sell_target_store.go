package postgres

import (
	"context"
	"fmt"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// SellTargetStore implements storage.SellTargetStore using PostgreSQL.
type SellTargetStore struct {
	pool *Pool
}

// NewSellTargetStore creates a new SellTargetStore.
func NewSellTargetStore(pool *Pool) *SellTargetStore {
	return &SellTargetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SellTargetStore = (*SellTargetStore)(nil)

// Upsert inserts or replaces the sell target of an instrument.
func (s *SellTargetStore) Upsert(ctx context.Context, t *domain.SellTarget) error {
	if t == nil || t.InstrumentID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sell_targets (instrument_id, buy_price, sell_price, computed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument_id) DO UPDATE SET
			buy_price = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			computed_at = EXCLUDED.computed_at
	`, t.InstrumentID, t.BuyPrice, t.SellPrice, t.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert sell target: %w", err)
	}
	return nil
}

// Get retrieves the sell target of an instrument. Returns ErrNotFound if not exists.
func (s *SellTargetStore) Get(ctx context.Context, instrumentID string) (*domain.SellTarget, error) {
	var t domain.SellTarget
	err := s.pool.QueryRow(ctx, `
		SELECT instrument_id, buy_price, sell_price, computed_at
		FROM sell_targets
		WHERE instrument_id = $1
	`, instrumentID).Scan(&t.InstrumentID, &t.BuyPrice, &t.SellPrice, &t.ComputedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sell target: %w", err)
	}
	t.ComputedAt = t.ComputedAt.UTC()
	return &t, nil
}
