package memory

import (
	"context"
	"sort"
	"sync"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// BondStore is an in-memory implementation of storage.BondStore.
type BondStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BondMetadata // keyed by instrument_id
}

// NewBondStore creates a new in-memory bond store.
func NewBondStore() *BondStore {
	return &BondStore{
		data: make(map[string]*domain.BondMetadata),
	}
}

// Upsert inserts or replaces bond metadata.
func (s *BondStore) Upsert(_ context.Context, b *domain.BondMetadata) error {
	if b == nil || b.InstrumentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[b.InstrumentID] = copyBond(b)
	return nil
}

// GetBond retrieves one bond. Returns ErrNotFound if not exists.
func (s *BondStore) GetBond(_ context.Context, instrumentID string) (*domain.BondMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[instrumentID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyBond(b), nil
}

// ListBonds returns every bond ordered by instrument_id ASC.
func (s *BondStore) ListBonds(_ context.Context) ([]domain.BondMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.BondMetadata, 0, len(s.data))
	for _, b := range s.data {
		result = append(result, *copyBond(b))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].InstrumentID < result[j].InstrumentID
	})

	return result, nil
}

// copyBond copies b including its maturity date.
func copyBond(b *domain.BondMetadata) *domain.BondMetadata {
	bondCopy := *b
	if b.MaturityDate != nil {
		maturity := *b.MaturityDate
		bondCopy.MaturityDate = &maturity
	}
	return &bondCopy
}

var _ storage.BondStore = (*BondStore)(nil)
