package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// RunInfo describes the run a report belongs to.
type RunInfo struct {
	RunID      string
	StartDate  time.Time
	EndDate    time.Time
	Parameters domain.StrategyParameters
}

// BuildReport rolls per-bond results up into a run-level report.
// Bonds keep the order given. skipped and filtered are copied into the report as-is.
func BuildReport(info RunInfo, bonds []domain.BondBacktestResult, skipped []domain.SkippedBond, filtered []string) *domain.BacktestReport {
	report := &domain.BacktestReport{
		RunID:                info.RunID,
		StartDate:            info.StartDate,
		EndDate:              info.EndDate,
		AnalysisPeriodMonths: info.Parameters.AnalysisPeriodMonths,
		Parameters:           info.Parameters,
		Bonds:                bonds,
		ErrorCount:           len(skipped),
		Skipped:              skipped,
		FilteredByVolume:     filtered,
	}
	rollUp(report)
	return report
}

// Aggregator rebuilds reports from persisted trades.
type Aggregator struct {
	tradeStore storage.TradeStore
	bondStore  storage.BondUniverseProvider

	// MissingBonds tracks instrument ids referenced by trades but absent from the bond universe.
	// Key: instrument_id, Value: count of trades referencing it.
	MissingBonds map[string]int
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeStore, bondStore storage.BondUniverseProvider) *Aggregator {
	return &Aggregator{
		tradeStore:   tradeStore,
		bondStore:    bondStore,
		MissingBonds: make(map[string]int),
	}
}

// ComputeReport loads the trades of a run, groups them by instrument and builds the report.
// Bonds appear in instrument_id ASC order. Trades of unknown bonds are aggregated with
// bare metadata and recorded in MissingBonds.
// Returns ErrNoTrades if the run has no trades.
func (a *Aggregator) ComputeReport(ctx context.Context, info RunInfo) (*domain.BacktestReport, error) {
	trades, err := a.tradeStore.GetByRunID(ctx, info.RunID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	byBond := make(map[string][]domain.Trade)
	for _, t := range trades {
		byBond[t.InstrumentID] = append(byBond[t.InstrumentID], t)
	}

	ids := make([]string, 0, len(byBond))
	for id := range byBond {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]domain.BondBacktestResult, 0, len(ids))
	for _, id := range ids {
		bond, err := a.bondStore.GetBond(ctx, id)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("load bond %s: %w", id, err)
			}
			a.MissingBonds[id] += len(byBond[id])
			bond = &domain.BondMetadata{InstrumentID: id}
		}
		results = append(results, SummarizeBond(*bond, byBond[id], 0))
	}

	return BuildReport(info, results, nil, nil), nil
}

// GetMissingBondErrors returns data quality errors for missing bonds.
// Returns slice of error messages sorted by instrument_id for deterministic output.
func (a *Aggregator) GetMissingBondErrors() []string {
	if len(a.MissingBonds) == 0 {
		return nil
	}

	keys := make([]string, 0, len(a.MissingBonds))
	for k := range a.MissingBonds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, id := range keys {
		msgs[i] = fmt.Sprintf("missing bond %s referenced by %d trade(s)", id, a.MissingBonds[id])
	}
	return msgs
}
