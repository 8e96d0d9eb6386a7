package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// BondStore implements storage.BondStore using PostgreSQL.
type BondStore struct {
	pool *Pool
}

// NewBondStore creates a new BondStore.
func NewBondStore(pool *Pool) *BondStore {
	return &BondStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BondStore = (*BondStore)(nil)

// Upsert inserts or replaces bond metadata keyed by instrument_id.
func (s *BondStore) Upsert(ctx context.Context, b *domain.BondMetadata) error {
	if b == nil || b.InstrumentID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO bonds (
			instrument_id, ticker, name, currency, maturity_date,
			risk_level, amortized, collateral_eligibility, avg_daily_volume, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (instrument_id) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			name = EXCLUDED.name,
			currency = EXCLUDED.currency,
			maturity_date = EXCLUDED.maturity_date,
			risk_level = EXCLUDED.risk_level,
			amortized = EXCLUDED.amortized,
			collateral_eligibility = EXCLUDED.collateral_eligibility,
			avg_daily_volume = EXCLUDED.avg_daily_volume,
			updated_at = now()
	`

	var maturity *time.Time
	if b.MaturityDate != nil {
		m := domain.DateOf(*b.MaturityDate)
		maturity = &m
	}

	_, err := s.pool.Exec(ctx, query,
		b.InstrumentID, b.Ticker, b.Name, b.Currency, maturity,
		b.RiskLevel.String(), b.Amortized, b.CollateralEligibility, b.AvgDailyVolume,
	)
	if err != nil {
		return fmt.Errorf("upsert bond: %w", err)
	}
	return nil
}

// GetBond retrieves one bond. Returns ErrNotFound if not exists.
func (s *BondStore) GetBond(ctx context.Context, instrumentID string) (*domain.BondMetadata, error) {
	query := `
		SELECT instrument_id, ticker, name, currency, maturity_date,
			risk_level, amortized, collateral_eligibility, avg_daily_volume
		FROM bonds
		WHERE instrument_id = $1
	`
	b, err := scanBond(s.pool.QueryRow(ctx, query, instrumentID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get bond: %w", err)
	}
	return b, nil
}

// ListBonds returns every bond ordered by instrument_id ASC.
func (s *BondStore) ListBonds(ctx context.Context) ([]domain.BondMetadata, error) {
	query := `
		SELECT instrument_id, ticker, name, currency, maturity_date,
			risk_level, amortized, collateral_eligibility, avg_daily_volume
		FROM bonds
		ORDER BY instrument_id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bonds: %w", err)
	}
	defer rows.Close()

	var bonds []domain.BondMetadata
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bond row: %w", err)
		}
		bonds = append(bonds, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bond rows: %w", err)
	}
	return bonds, nil
}

func scanBond(row pgx.Row) (*domain.BondMetadata, error) {
	var b domain.BondMetadata
	var risk string
	var maturity *time.Time

	err := row.Scan(
		&b.InstrumentID, &b.Ticker, &b.Name, &b.Currency, &maturity,
		&risk, &b.Amortized, &b.CollateralEligibility, &b.AvgDailyVolume,
	)
	if err != nil {
		return nil, err
	}

	level, err := domain.ParseRiskLevel(risk)
	if err != nil {
		return nil, err
	}
	b.RiskLevel = level
	if maturity != nil {
		m := domain.DateOf(*maturity)
		b.MaturityDate = &m
	}
	return &b, nil
}
