// Command analyze filters the bond universe, scores each bond over the analysis window
// and prints the top bonds with their buy/sell recommendations.
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
	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/ingest"
	"bond-reversion-lab/internal/logger"
	"bond-reversion-lab/internal/params"
	"bond-reversion-lab/internal/reporting"
	"bond-reversion-lab/internal/scoring"
	"bond-reversion-lab/internal/strategy"
)

func main() {
	// Parse flags
	top := flag.Int("top", 10, "Number of bonds to print")
	asOfRaw := flag.String("as-of", "", "Analysis date YYYY-MM-DD (default today, UTC)")
	format := flag.String("format", "markdown", "Output format: markdown, json")
	bondsCSV := flag.String("import-bonds", "", "CSV of bond metadata to load before analyzing")
	candlesCSV := flag.String("import-candles", "", "CSV of daily candles to load before analyzing")
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

	asOf := time.Now().UTC()
	if *asOfRaw != "" {
		if asOf, err = time.Parse("2006-01-02", *asOfRaw); err != nil {
			log.Fatal("invalid --as-of", zap.String("value", *asOfRaw), zap.Error(err))
		}
	}
	if *format != "markdown" && *format != "json" {
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

	rows, err := analyze(ctx, stores, cfg.Filter.Criteria(), asOf, *top, log)
	if err != nil {
		log.Fatal("analysis failed", zap.Error(err))
	}

	if *format == "json" {
		output, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(output))
		return
	}
	fmt.Print(reporting.RenderAnalysisMarkdown(rows, asOf, time.Now().UTC()))
}

func analyze(ctx context.Context, stores *app.Stores, criteria domain.FilterCriteria, asOf time.Time, top int, log *zap.Logger) ([]reporting.AnalysisRow, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	p, err := params.LoadStrategyParameters(ctx, stores.Params)
	if err != nil {
		return nil, err
	}

	universe, err := stores.Bonds.ListBonds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bonds: %w", err)
	}
	bonds := scoring.FilterByVolume(scoring.Filter(universe, criteria, asOf), criteria.MinAvgDailyVolume)
	log.Info("bonds selected",
		zap.Int("universe", len(universe)),
		zap.Int("selected", len(bonds)),
	)

	engine := scoring.NewEngine(stores.CandleProvider(log), log)
	results, skipped, err := engine.AnalyzeAll(ctx, bonds, asOf, p.AnalysisPeriodMonths)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		log.Info("bonds skipped", zap.Int("count", len(skipped)))
	}

	if top > 0 && len(results) > top {
		results = results[:top]
	}
	rows := make([]reporting.AnalysisRow, 0, len(results))
	for _, res := range results {
		rec, err := strategy.Recommend(res.CurrentPrice, res.Volatility, res.AvgPrice, p)
		if err != nil {
			log.Warn("no recommendation",
				zap.String("instrument_id", res.Bond.InstrumentID),
				zap.Error(err),
			)
		}
		rows = append(rows, reporting.AnalysisRow{Result: res, Recommendation: rec})
	}
	return rows, nil
}
