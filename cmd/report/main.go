// Command report rebuilds a backtest report from persisted trades and writes
// Markdown and CSV files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"bond-reversion-lab/internal/app"
	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/logger"
	"bond-reversion-lab/internal/metrics"
	"bond-reversion-lab/internal/params"
	"bond-reversion-lab/internal/reporting"
	"bond-reversion-lab/internal/verification"
)

func main() {
	// Parse flags
	runID := flag.String("run-id", "", "Backtest run id (required)")
	fromRaw := flag.String("from", "", "Run start date YYYY-MM-DD, for the report header")
	toRaw := flag.String("to", "", "Run end date YYYY-MM-DD, for the report header")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	verify := flag.Bool("verify", false, "Re-simulate the run and compare against the stored trades (needs --from and --to)")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *runID == "" {
		log.Fatal("--run-id is required")
	}
	if *verify && (*fromRaw == "" || *toRaw == "") {
		log.Fatal("--verify requires --from and --to")
	}

	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("open stores failed", zap.Error(err))
	}
	defer stores.Close()

	p, err := params.LoadStrategyParameters(ctx, stores.Params)
	if err != nil {
		log.Fatal("load strategy parameters failed", zap.Error(err))
	}

	info := metrics.RunInfo{RunID: *runID, Parameters: p}
	if info.StartDate, err = parseOptionalDate(*fromRaw); err != nil {
		log.Fatal("invalid --from", zap.Error(err))
	}
	if info.EndDate, err = parseOptionalDate(*toRaw); err != nil {
		log.Fatal("invalid --to", zap.Error(err))
	}

	aggregator := metrics.NewAggregator(stores.Trades, stores.BondProvider())
	report, err := aggregator.ComputeReport(ctx, info)
	if errors.Is(err, metrics.ErrNoTrades) {
		log.Fatal("run has no persisted trades", zap.String("run_id", *runID))
	}
	if err != nil {
		log.Fatal("compute report failed", zap.Error(err))
	}
	for _, msg := range aggregator.GetMissingBondErrors() {
		log.Warn("data quality", zap.String("detail", msg))
	}
	if *verify {
		if err := verifyRun(ctx, stores, info, log); err != nil {
			log.Fatal("verification failed", zap.Error(err))
		}
	}
	fillPeriod(report)

	if err := writeFiles(*outputDir, report); err != nil {
		log.Fatal("write report failed", zap.Error(err))
	}
	log.Info("report written",
		zap.String("run_id", *runID),
		zap.String("output_dir", *outputDir),
		zap.Int("trades", report.TotalTrades),
	)
}

func verifyRun(ctx context.Context, stores *app.Stores, info metrics.RunInfo, log *zap.Logger) error {
	v := verification.NewVerifier(stores.Trades, stores.CandleProvider(log), stores.Bonds)
	res, err := v.VerifyRun(ctx, verification.Request{
		RunID:     info.RunID,
		Params:    info.Parameters,
		StartDate: info.StartDate,
		EndDate:   info.EndDate,
	})
	if err != nil {
		return err
	}

	for id, msg := range res.Errors {
		log.Warn("replay failed", zap.String("instrument_id", id), zap.String("error", msg))
	}
	for _, r := range res.Results {
		if r.Match {
			continue
		}
		fields := make([]string, 0, len(r.Divergences))
		for _, d := range r.Divergences {
			fields = append(fields, d.Field)
		}
		log.Warn("trade diverged",
			zap.String("trade_id", r.TradeID),
			zap.String("instrument_id", r.InstrumentID),
			zap.Bool("missing", r.Missing),
			zap.Strings("fields", fields),
		)
	}
	log.Info("verification done",
		zap.Int("trades", res.TotalTrades),
		zap.Int("matched", res.MatchedTrades),
		zap.Int("divergent", res.DivergentTrades),
		zap.Int("missing", res.MissingTrades),
		zap.Int("extra", len(res.ExtraTrades)),
	)
	if !res.OK() {
		return errors.New("stored trades do not match the replay")
	}
	return nil
}

func parseOptionalDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

// fillPeriod derives missing header dates from the first buy and last sell.
func fillPeriod(r *domain.BacktestReport) {
	for _, b := range r.Bonds {
		for _, t := range b.Trades {
			if r.StartDate.IsZero() || t.BuyDate.Before(r.StartDate) {
				r.StartDate = t.BuyDate
			}
			if t.SellDate.After(r.EndDate) {
				r.EndDate = t.SellDate
			}
		}
	}
}

func writeFiles(dir string, r *domain.BacktestReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := map[string]string{
		"REPORT_" + r.RunID + ".md":  reporting.RenderBacktestMarkdown(r, time.Now().UTC(), true),
		"trades_" + r.RunID + ".csv": reporting.RenderTradesCSV(r),
		"bonds_" + r.RunID + ".csv":  reporting.RenderBondSummaryCSV(r),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
