package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	id, exchange_id, account_id, instrument_id, direction,
	requested_lots, executed_lots, price, avg_exec_price, status,
	parent_order_id, error_message,
	created_at, submitted_at, executed_at, cancelled_at, updated_at`

// Insert adds a new order. Returns ErrDuplicateKey if id exists or the parent already has a paired order.
func (s *OrderStore) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO orders (` + orderColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16, $17
		)
	`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.ExchangeID, o.AccountID, o.InstrumentID, string(o.Direction),
		o.RequestedLots, o.ExecutedLots, o.Price, o.AvgExecPrice, string(o.Status),
		nullString(o.ParentOrderID), o.ErrorMessage,
		o.CreatedAt, o.SubmittedAt, o.ExecutedAt, o.CancelledAt, o.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its local id. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// FindByParentID retrieves the order paired with parentID. Returns ErrNotFound if not exists.
func (s *OrderStore) FindByParentID(ctx context.Context, parentID string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE parent_order_id = $1`, parentID)
	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find order by parent id: %w", err)
	}
	return o, nil
}

// ListActive returns orders still tracked by the poll cycle, oldest first.
func (s *OrderStore) ListActive(ctx context.Context) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN ('PENDING', 'NEW', 'PARTIALLY_FILLED')
		ORDER BY created_at ASC, id ASC
	`
	return s.query(ctx, "list active orders", query)
}

// ListUnpairedFilledBuys returns FILLED buys without a paired order, oldest first.
func (s *OrderStore) ListUnpairedFilledBuys(ctx context.Context) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.direction = 'BUY' AND o.status = 'FILLED'
			AND NOT EXISTS (SELECT 1 FROM orders p WHERE p.parent_order_id = o.id)
		ORDER BY o.created_at ASC, o.id ASC
	`
	return s.query(ctx, "list unpaired filled buys", query)
}

// List returns the most recent orders, newest first. limit <= 0 means no limit.
func (s *OrderStore) List(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		return s.query(ctx, "list orders", query+` LIMIT $1`, limit)
	}
	return s.query(ctx, "list orders", query)
}

// Update applies fn to the order under a row lock and persists the result.
// The id and parent link cannot change. An error from fn rolls back and is returned as-is.
func (s *OrderStore) Update(ctx context.Context, id string, fn storage.OrderUpdateFunc) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	current, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.ParentOrderID = current.ParentOrderID

	_, err = tx.Exec(ctx, `
		UPDATE orders SET
			exchange_id = $2, account_id = $3, instrument_id = $4, direction = $5,
			requested_lots = $6, executed_lots = $7, price = $8, avg_exec_price = $9, status = $10,
			error_message = $11,
			submitted_at = $12, executed_at = $13, cancelled_at = $14, updated_at = $15
		WHERE id = $1
	`,
		next.ID, next.ExchangeID, next.AccountID, next.InstrumentID, string(next.Direction),
		next.RequestedLots, next.ExecutedLots, next.Price, next.AvgExecPrice, string(next.Status),
		next.ErrorMessage,
		next.SubmittedAt, next.ExecutedAt, next.CancelledAt, next.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &next, nil
}

func (s *OrderStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// scanOrder scans a single row into an Order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var direction, status string
	var parentID *string

	err := row.Scan(
		&o.ID, &o.ExchangeID, &o.AccountID, &o.InstrumentID, &direction,
		&o.RequestedLots, &o.ExecutedLots, &o.Price, &o.AvgExecPrice, &status,
		&parentID, &o.ErrorMessage,
		&o.CreatedAt, &o.SubmittedAt, &o.ExecutedAt, &o.CancelledAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Direction = domain.Direction(direction)
	o.Status = domain.OrderStatus(status)
	if parentID != nil {
		o.ParentOrderID = *parentID
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.SubmittedAt = utcPtr(o.SubmittedAt)
	o.ExecutedAt = utcPtr(o.ExecutedAt)
	o.CancelledAt = utcPtr(o.CancelledAt)
	return &o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
