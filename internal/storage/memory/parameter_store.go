package memory

import (
	"context"
	"sync"

	"bond-reversion-lab/internal/storage"
)

// ParameterStore is an in-memory implementation of storage.ParameterStore.
type ParameterStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewParameterStore creates a new in-memory parameter store seeded with values.
func NewParameterStore(values map[string]string) *ParameterStore {
	data := make(map[string]string, len(values))
	for k, v := range values {
		data[k] = v
	}
	return &ParameterStore{data: data}
}

// Get returns the value for key and whether it was present.
func (s *ParameterStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// Set inserts or replaces a value.
func (s *ParameterStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

var _ storage.ParameterStore = (*ParameterStore)(nil)
