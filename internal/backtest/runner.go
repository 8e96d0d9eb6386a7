package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/idhash"
	"bond-reversion-lab/internal/metrics"
	"bond-reversion-lab/internal/observability"
	"bond-reversion-lab/internal/simulation"
	"bond-reversion-lab/internal/storage"
)

// DefaultWorkers is the number of bonds simulated concurrently when RunnerOptions.Workers is unset.
const DefaultWorkers = 4

// Request describes one backtest run.
type Request struct {
	Bonds             []domain.BondMetadata
	Params            domain.StrategyParameters
	StartDate         time.Time
	EndDate           time.Time
	MinAvgDailyVolume int64 // bonds with a lower mean candle volume are dropped; 0 disables the pre-pass
}

// Result is delivered by RunAsync.
type Result struct {
	Report *domain.BacktestReport
	Err    error
}

// Runner executes backtests across a bond set.
type Runner struct {
	candles    storage.CandleSeriesProvider
	tradeStore storage.TradeStore
	metrics    *observability.Metrics
	logger     *zap.Logger
	workers    int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Candles    storage.CandleSeriesProvider
	TradeStore storage.TradeStore // optional, trades are persisted when set
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Workers    int
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		candles:    opts.Candles,
		tradeStore: opts.TradeStore,
		metrics:    opts.Metrics,
		logger:     logger,
		workers:    workers,
	}
}

// bondRun is the per-bond slot filled by a worker.
type bondRun struct {
	bond     domain.BondMetadata
	candles  []*domain.Candle
	result   *domain.BondBacktestResult
	err      error
	filtered bool
}

// Run executes the backtest.
// Steps:
//  1. Validate parameters and date range
//  2. Load candles per bond for [StartDate - months, EndDate]
//  3. Drop bonds below MinAvgDailyVolume (mean candle volume over the loaded span)
//  4. Simulate each remaining bond, in parallel across bonds
//  5. Aggregate per-bond results in input order
//  6. Persist trades when a TradeStore is configured
//
// Per-bond failures are logged, counted and excluded; they never abort the run.
// Context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, req Request) (*domain.BacktestReport, error) {
	started := time.Now()
	report, err := r.run(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordBacktestRun(status, time.Since(started))
	return report, err
}

// RunAsync executes Run on a new goroutine and delivers the result on the returned channel.
// The channel is buffered and closed after the single result is sent.
func (r *Runner) RunAsync(ctx context.Context, req Request) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		report, err := r.Run(ctx, req)
		out <- Result{Report: report, Err: err}
	}()
	return out
}

func (r *Runner) run(ctx context.Context, req Request) (*domain.BacktestReport, error) {
	// 1. Validate
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	start := domain.DateOf(req.StartDate)
	end := domain.DateOf(req.EndDate)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s before %s", simulation.ErrInvalidRange, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	lookback := start.AddDate(0, -req.Params.AnalysisPeriodMonths, 0)

	ids := make([]string, len(req.Bonds))
	for i, b := range req.Bonds {
		ids[i] = b.InstrumentID
	}
	runID := idhash.ComputeRunID(start, end,
		req.Params.VolatilityMultiplier, req.Params.ProfitMarginFraction, req.Params.BrokerCommissionFraction,
		req.Params.AnalysisPeriodMonths, ids)

	r.logger.Info("backtest started",
		zap.String("run_id", runID),
		zap.Int("bonds", len(req.Bonds)),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	runs := make([]*bondRun, len(req.Bonds))
	for i, b := range req.Bonds {
		runs[i] = &bondRun{bond: b}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, br := range runs {
		g.Go(func() error {
			// 2-4. Load, volume pre-pass, simulate
			r.runBond(gctx, runID, br, req, lookback, start, end)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Aggregate in input order
	var (
		results  []domain.BondBacktestResult
		skipped  []domain.SkippedBond
		filtered []string
		trades   []domain.Trade
	)
	for _, br := range runs {
		switch {
		case br.err != nil:
			skipped = append(skipped, domain.SkippedBond{InstrumentID: br.bond.InstrumentID, Reason: br.err.Error()})
			r.metrics.RecordBondSkipped(skipReason(br.err))
		case br.filtered:
			filtered = append(filtered, br.bond.InstrumentID)
			r.metrics.RecordBondSkipped("low_volume")
		default:
			results = append(results, *br.result)
			trades = append(trades, br.result.Trades...)
			r.metrics.RecordBondSimulated(exitReasons(br.result.Trades))
		}
	}

	report := metrics.BuildReport(metrics.RunInfo{
		RunID:      runID,
		StartDate:  start,
		EndDate:    end,
		Parameters: req.Params,
	}, results, skipped, filtered)

	// 6. Persist trades
	if r.tradeStore != nil && len(trades) > 0 {
		if err := r.tradeStore.InsertBulk(ctx, trades); err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				return nil, fmt.Errorf("persist trades: %w: %w", domain.ErrPersistence, err)
			}
			r.logger.Info("trades already persisted", zap.String("run_id", runID))
		}
	}

	r.logger.Info("backtest finished",
		zap.String("run_id", runID),
		zap.Int("bonds", report.BondCount),
		zap.Int("trades", report.TotalTrades),
		zap.Float64("win_rate", report.WinRate),
		zap.Int("errors", report.ErrorCount),
		zap.Int("filtered_by_volume", len(filtered)),
	)

	return report, nil
}

// runBond fills br. Failures are recorded on br, never returned.
func (r *Runner) runBond(ctx context.Context, runID string, br *bondRun, req Request, lookback, start, end time.Time) {
	id := br.bond.InstrumentID

	candles, err := r.candles.GetCandles(ctx, id, lookback, end)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		br.err = fmt.Errorf("load candles: %w: %w", domain.ErrExternalService, err)
		r.logger.Warn("bond excluded", zap.String("instrument_id", id), zap.Error(br.err))
		return
	}
	if len(candles) == 0 {
		br.err = fmt.Errorf("no candles in range: %w", domain.ErrDataUnavailable)
		r.logger.Warn("bond excluded", zap.String("instrument_id", id), zap.Error(br.err))
		return
	}

	if req.MinAvgDailyVolume > 0 && averageVolume(candles) < float64(req.MinAvgDailyVolume) {
		br.filtered = true
		r.logger.Debug("bond below volume threshold", zap.String("instrument_id", id))
		return
	}

	outcome, err := simulation.Run(ctx, simulation.Input{
		RunID:     runID,
		Bond:      br.bond,
		Candles:   candles,
		Params:    req.Params,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		br.err = fmt.Errorf("simulate: %w", err)
		r.logger.Warn("bond excluded", zap.String("instrument_id", id), zap.Error(br.err))
		return
	}

	result := metrics.SummarizeBond(br.bond, outcome.Trades, outcome.SkippedDays)
	br.result = &result
}

// averageVolume returns the mean candle volume.
func averageVolume(candles []*domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum int64
	for _, c := range candles {
		sum += c.Volume
	}
	return float64(sum) / float64(len(candles))
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, domain.ErrExternalService):
		return "external_service"
	case errors.Is(err, domain.ErrInvalidParameter):
		return "invalid_parameter"
	default:
		return "other"
	}
}

func exitReasons(trades []domain.Trade) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = string(t.ExitReason)
	}
	return out
}
