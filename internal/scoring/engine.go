package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// Engine scores a bond set from candle history.
type Engine struct {
	candles storage.CandleSeriesProvider
	logger  *zap.Logger
}

// NewEngine creates a scoring engine reading candles from provider.
func NewEngine(candles storage.CandleSeriesProvider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{candles: candles, logger: logger}
}

// Skipped describes a bond that produced no analysis result.
type Skipped struct {
	InstrumentID string
	Err          error
}

// AnalyzeAll analyzes every bond over [asOf - months, asOf] and returns results sorted by score DESC.
// Ties keep input order. Bonds without candles or whose provider call fails are skipped and reported.
// Only context cancellation aborts the run.
func (e *Engine) AnalyzeAll(ctx context.Context, bonds []domain.BondMetadata, asOf time.Time, months int) ([]*domain.AnalysisResult, []Skipped, error) {
	results := make([]*domain.AnalysisResult, 0, len(bonds))
	var skipped []Skipped

	for _, bond := range bonds {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		result, err := e.AnalyzeBond(ctx, bond, asOf, months)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			e.logger.Warn("bond skipped",
				zap.String("instrument_id", bond.InstrumentID),
				zap.Error(err),
			)
			skipped = append(skipped, Skipped{InstrumentID: bond.InstrumentID, Err: err})
			continue
		}
		results = append(results, result)
	}

	SortByScore(results)
	return results, skipped, nil
}

// AnalyzeBond analyzes one bond over [asOf - months, asOf].
func (e *Engine) AnalyzeBond(ctx context.Context, bond domain.BondMetadata, asOf time.Time, months int) (*domain.AnalysisResult, error) {
	to := domain.DateOf(asOf)
	from := to.AddDate(0, -months, 0)
	candles, err := e.candles.GetCandles(ctx, bond.InstrumentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w: %w", bond.InstrumentID, domain.ErrExternalService, err)
	}
	return Analyze(bond, candles)
}

// SortByScore orders results by score DESC, keeping input order for ties.
func SortByScore(results []*domain.AnalysisResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
