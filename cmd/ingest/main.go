// Command ingest loads bond metadata and daily candles from CSV files into the configured stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bond-reversion-lab/internal/app"
	"bond-reversion-lab/internal/ingest"
	"bond-reversion-lab/internal/logger"
)

func main() {
	// Parse flags
	bondsCSV := flag.String("bonds", "", "CSV of bond metadata")
	candlesCSV := flag.String("candles", "", "CSV of daily candles")
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

	if *bondsCSV == "" && *candlesCSV == "" {
		log.Fatal("at least one of --bonds or --candles is required")
	}
	if cfg.Storage.Backend == app.BackendMemory && cfg.Storage.CandleBackend == app.BackendMemory {
		log.Warn("memory backends selected, imported data is discarded on exit")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("open stores failed", zap.Error(err))
	}
	defer stores.Close()

	stats, err := ingest.NewImporter(stores.Bonds, stores.Candles, log).ImportFiles(ctx, *bondsCSV, *candlesCSV)
	if err != nil {
		log.Fatal("import failed", zap.Error(err))
	}

	// Cached windows may predate the new candles.
	candles := stores.CandleProvider(log)
	for _, id := range stats.Instruments {
		if err := candles.Invalidate(ctx, id); err != nil {
			log.Warn("candle cache invalidation failed", zap.String("instrument_id", id), zap.Error(err))
		}
	}

	log.Info("import done",
		zap.Int("bonds", stats.Bonds),
		zap.Int("candles", stats.Candles),
		zap.Int("instruments", stats.InstrumentsLoaded),
		zap.Int("duplicate_series", stats.DuplicateSeries),
	)
}
