package memory

import (
	"context"
	"sync"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// SellTargetStore is an in-memory implementation of storage.SellTargetStore.
type SellTargetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SellTarget // keyed by instrument_id
}

// NewSellTargetStore creates a new in-memory sell target store.
func NewSellTargetStore() *SellTargetStore {
	return &SellTargetStore{
		data: make(map[string]*domain.SellTarget),
	}
}

// Upsert inserts or replaces the sell target of an instrument.
func (s *SellTargetStore) Upsert(_ context.Context, t *domain.SellTarget) error {
	if t == nil || t.InstrumentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targetCopy := *t
	s.data[t.InstrumentID] = &targetCopy
	return nil
}

// Get retrieves the sell target of an instrument. Returns ErrNotFound if not exists.
func (s *SellTargetStore) Get(_ context.Context, instrumentID string) (*domain.SellTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[instrumentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	targetCopy := *t
	return &targetCopy, nil
}

var _ storage.SellTargetStore = (*SellTargetStore)(nil)
