package postgres

import (
	"context"
	"fmt"

	"bond-reversion-lab/internal/storage"
)

// ParameterStore implements storage.ParameterStore on the strategy_parameters table.
type ParameterStore struct {
	pool *Pool
}

// NewParameterStore creates a new ParameterStore.
func NewParameterStore(pool *Pool) *ParameterStore {
	return &ParameterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ParameterStore = (*ParameterStore)(nil)

// Get returns the value for key and whether it was present.
func (s *ParameterStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM strategy_parameters WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if isNotFoundError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get parameter %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces a value.
func (s *ParameterStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO strategy_parameters (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set parameter %s: %w", key, err)
	}
	return nil
}
