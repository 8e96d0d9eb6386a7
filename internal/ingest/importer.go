package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// Stats summarizes an import.
type Stats struct {
	Bonds             int
	Candles           int
	DuplicateSeries   int // instruments whose candle batch was rejected as already present
	InstrumentsLoaded int
	Instruments       []string // instruments whose candles were inserted, sorted
}

// Importer writes parsed rows into the stores.
type Importer struct {
	bonds   storage.BondStore
	candles storage.CandleStore
	logger  *zap.Logger
}

// NewImporter creates an importer. Either store may be nil when only the other file is imported.
func NewImporter(bonds storage.BondStore, candles storage.CandleStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{bonds: bonds, candles: candles, logger: logger}
}

// ImportFiles loads the bonds file and then the candles file. An empty path is skipped.
func (im *Importer) ImportFiles(ctx context.Context, bondsPath, candlesPath string) (Stats, error) {
	var stats Stats

	if bondsPath != "" {
		f, err := os.Open(bondsPath)
		if err != nil {
			return stats, fmt.Errorf("open bonds file: %w", err)
		}
		bonds, err := ParseBonds(f)
		f.Close()
		if err != nil {
			return stats, err
		}
		if err := im.ImportBonds(ctx, bonds); err != nil {
			return stats, err
		}
		stats.Bonds = len(bonds)
	}

	if candlesPath != "" {
		f, err := os.Open(candlesPath)
		if err != nil {
			return stats, fmt.Errorf("open candles file: %w", err)
		}
		candles, err := ParseCandles(f)
		f.Close()
		if err != nil {
			return stats, err
		}
		cs, err := im.ImportCandles(ctx, candles)
		if err != nil {
			return stats, err
		}
		stats.Candles = cs.Candles
		stats.InstrumentsLoaded = cs.InstrumentsLoaded
		stats.DuplicateSeries = cs.DuplicateSeries
		stats.Instruments = cs.Instruments
	}

	return stats, nil
}

// ImportBonds upserts every bond.
func (im *Importer) ImportBonds(ctx context.Context, bonds []domain.BondMetadata) error {
	if im.bonds == nil {
		return errors.New("bond store not configured")
	}
	for i := range bonds {
		if err := im.bonds.Upsert(ctx, &bonds[i]); err != nil {
			return fmt.Errorf("upsert bond %s: %w", bonds[i].InstrumentID, err)
		}
	}
	return nil
}

// ImportCandles inserts candles one instrument batch at a time.
// A batch that collides with stored candles is logged and skipped; other errors abort.
func (im *Importer) ImportCandles(ctx context.Context, candles []*domain.Candle) (Stats, error) {
	var stats Stats
	if im.candles == nil {
		return stats, errors.New("candle store not configured")
	}

	byInstrument := make(map[string][]*domain.Candle)
	for _, c := range candles {
		byInstrument[c.InstrumentID] = append(byInstrument[c.InstrumentID], c)
	}
	ids := make([]string, 0, len(byInstrument))
	for id := range byInstrument {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		batch := byInstrument[id]
		err := im.candles.InsertBulk(ctx, batch)
		if errors.Is(err, storage.ErrDuplicateKey) {
			im.logger.Warn("candle batch skipped",
				zap.String("instrument_id", id),
				zap.Int("candles", len(batch)),
				zap.Error(err),
			)
			stats.DuplicateSeries++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("insert candles %s: %w", id, err)
		}
		stats.Candles += len(batch)
		stats.InstrumentsLoaded++
		stats.Instruments = append(stats.Instruments, id)
	}
	return stats, nil
}
