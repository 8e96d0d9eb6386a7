// Command backtest replays the mean-reversion strategy over historical candles
// for the filtered bond universe and prints the aggregated report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bond-reversion-lab/internal/app"
	"bond-reversion-lab/internal/backtest"
	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/ingest"
	"bond-reversion-lab/internal/logger"
	"bond-reversion-lab/internal/observability"
	"bond-reversion-lab/internal/params"
	"bond-reversion-lab/internal/reporting"
	"bond-reversion-lab/internal/scoring"
	"bond-reversion-lab/internal/storage"
)

func main() {
	// Parse flags
	fromRaw := flag.String("from", "", "First simulated day YYYY-MM-DD (required)")
	toRaw := flag.String("to", "", "Last simulated day YYYY-MM-DD (required)")
	format := flag.String("format", "markdown", "Output format: markdown, json, csv")
	withTrades := flag.Bool("trades", false, "Include per-trade tables in markdown output")
	persist := flag.Bool("persist", false, "Persist simulated trades to the trade store")
	bondsCSV := flag.String("import-bonds", "", "CSV of bond metadata to load before the run")
	candlesCSV := flag.String("import-candles", "", "CSV of daily candles to load before the run")
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

	// Validate required flags
	if *fromRaw == "" || *toRaw == "" {
		log.Fatal("--from and --to are required")
	}
	from, err := time.Parse("2006-01-02", *fromRaw)
	if err != nil {
		log.Fatal("invalid --from", zap.String("value", *fromRaw), zap.Error(err))
	}
	to, err := time.Parse("2006-01-02", *toRaw)
	if err != nil {
		log.Fatal("invalid --to", zap.String("value", *toRaw), zap.Error(err))
	}
	switch *format {
	case "markdown", "json", "csv":
	default:
		log.Fatal("invalid --format", zap.String("value", *format))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("open stores failed", zap.Error(err))
	}
	defer stores.Close()

	if *bondsCSV != "" || *candlesCSV != "" {
		stats, err := ingest.NewImporter(stores.Bonds, stores.Candles, log).ImportFiles(ctx, *bondsCSV, *candlesCSV)
		if err != nil {
			log.Fatal("import failed", zap.Error(err))
		}
		log.Info("import done", zap.Int("bonds", stats.Bonds), zap.Int("candles", stats.Candles))
	}

	p, err := params.LoadStrategyParameters(ctx, stores.Params)
	if err != nil {
		log.Fatal("load strategy parameters failed", zap.Error(err))
	}

	criteria := cfg.Filter.Criteria()
	if err := criteria.Validate(); err != nil {
		log.Fatal("invalid filter", zap.Error(err))
	}
	universe, err := stores.Bonds.ListBonds(ctx)
	if err != nil {
		log.Fatal("list bonds failed", zap.Error(err))
	}
	// Maturity is judged as of the first simulated day.
	bonds := scoring.Filter(universe, criteria, from)

	var tradeStore storage.TradeStore
	if *persist {
		tradeStore = stores.Trades
	}

	runner := backtest.NewRunner(backtest.RunnerOptions{
		Candles:    stores.CandleProvider(log),
		TradeStore: tradeStore,
		Metrics:    observability.NewMetrics("", nil),
		Logger:     log,
		Workers:    cfg.Backtest.Workers,
	})

	res := <-runner.RunAsync(ctx, backtest.Request{
		Bonds:             bonds,
		Params:            p,
		StartDate:         from,
		EndDate:           to,
		MinAvgDailyVolume: criteria.MinAvgDailyVolume,
	})
	if res.Err != nil {
		log.Fatal("backtest failed", zap.Error(res.Err))
	}

	printReport(res.Report, *format, *withTrades)
}

func printReport(r *domain.BacktestReport, format string, withTrades bool) {
	switch format {
	case "json":
		output, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(output))
	case "csv":
		fmt.Print(reporting.RenderTradesCSV(r))
	default:
		fmt.Print(reporting.RenderBacktestMarkdown(r, time.Now().UTC(), withTrades))
	}
}
