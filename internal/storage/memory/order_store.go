package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
// Update holds the write lock for the whole read-modify-write.
type OrderStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Order // keyed by id
	byParent map[string]string        // parent_order_id -> id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data:     make(map[string]*domain.Order),
		byParent: make(map[string]string),
	}
}

// Insert adds a new order. Returns ErrDuplicateKey if id or parent_order_id is taken.
func (s *OrderStore) Insert(_ context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" || o.InstrumentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if o.ParentOrderID != "" {
		if _, exists := s.byParent[o.ParentOrderID]; exists {
			return storage.ErrDuplicateKey
		}
		s.byParent[o.ParentOrderID] = o.ID
	}

	s.data[o.ID] = copyOrder(o)
	return nil
}

// GetByID retrieves an order by its local id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyOrder(o), nil
}

// FindByParentID retrieves the order referencing parentID. Returns ErrNotFound if not exists.
func (s *OrderStore) FindByParentID(_ context.Context, parentID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byParent[parentID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyOrder(s.data[id]), nil
}

// ListActive returns orders in PENDING, NEW or PARTIALLY_FILLED, ordered by created_at ASC, id ASC.
func (s *OrderStore) ListActive(_ context.Context) ([]*domain.Order, error) {
	return s.collect(func(o *domain.Order) bool { return o.Status.IsActive() }, ascending), nil
}

// ListUnpairedFilledBuys returns FILLED buys that no order references as parent.
func (s *OrderStore) ListUnpairedFilledBuys(_ context.Context) ([]*domain.Order, error) {
	return s.collect(func(o *domain.Order) bool {
		if o.Direction != domain.DirectionBuy || o.Status != domain.OrderStatusFilled {
			return false
		}
		_, paired := s.byParent[o.ID]
		return !paired
	}, ascending), nil
}

// List returns the most recent orders, newest first. limit <= 0 means no limit.
func (s *OrderStore) List(_ context.Context, limit int) ([]*domain.Order, error) {
	result := s.collect(func(*domain.Order) bool { return true }, descending)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update atomically applies fn to the stored order. The id and parent link cannot change.
func (s *OrderStore) Update(_ context.Context, id string, fn storage.OrderUpdateFunc) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	next := copyOrder(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.ParentOrderID = current.ParentOrderID

	s.data[id] = next
	return copyOrder(next), nil
}

type orderLess func(a, b *domain.Order) bool

func ascending(a, b *domain.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func descending(a, b *domain.Order) bool {
	return ascending(b, a)
}

func (s *OrderStore) collect(keep func(*domain.Order) bool, less orderLess) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if keep(o) {
			result = append(result, copyOrder(o))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return less(result[i], result[j])
	})
	return result
}

// copyOrder copies o including its timestamp pointers.
func copyOrder(o *domain.Order) *domain.Order {
	orderCopy := *o
	orderCopy.SubmittedAt = copyTime(o.SubmittedAt)
	orderCopy.ExecutedAt = copyTime(o.ExecutedAt)
	orderCopy.CancelledAt = copyTime(o.CancelledAt)
	return &orderCopy
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ storage.OrderStore = (*OrderStore)(nil)
