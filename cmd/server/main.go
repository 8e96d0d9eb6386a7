// Command server runs the order tracker on a cron schedule and serves the HTTP API:
// recommendations, order placement and cancellation, health and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"bond-reversion-lab/internal/advisor"
	"bond-reversion-lab/internal/api"
	"bond-reversion-lab/internal/app"
	"bond-reversion-lab/internal/broker"
	"bond-reversion-lab/internal/config"
	"bond-reversion-lab/internal/logger"
	"bond-reversion-lab/internal/observability"
	"bond-reversion-lab/internal/tracker"
)

func main() {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("", registry)

	candles := stores.CandleProvider(log)
	gateway, err := newGateway(cfg.Broker, broker.CandleQuotes{Candles: candles})
	if err != nil {
		return err
	}

	trk := tracker.New(tracker.Options{
		Orders:      stores.Orders,
		Targets:     stores.Targets,
		Gateway:     gateway,
		Metrics:     metrics,
		Logger:      log.Named("tracker"),
		CallTimeout: cfg.Tracker.CallTimeout,
	})
	if cfg.Tracker.Enabled {
		runner, err := trk.Start(ctx, cfg.Tracker.Schedule)
		if err != nil {
			return fmt.Errorf("start tracker: %w", err)
		}
		defer runner.Stop()
		log.Info("tracker started", zap.String("schedule", cfg.Tracker.Schedule))
	}

	adv := advisor.New(advisor.Options{
		Bonds:   stores.BondProvider(),
		Candles: candles,
		Params:  stores.Params,
		Targets: stores.Targets,
		Orders:  trk,
		Logger:  log.Named("advisor"),
	})

	router := api.NewRouter(api.Deps{
		Orders:          &api.OrderHandler{Orders: stores.Orders, Buyer: adv, Canceller: trk},
		Recommendations: &api.RecommendationHandler{Advisor: adv},
		Health:          &api.HealthHandler{Deps: stores.Health()},
		Gatherer:        registry,
		Logger:          log.Named("http"),
		Debug:           strings.EqualFold(cfg.App.Env, "dev"),
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newGateway builds the broker gateway behind the rate limiter.
func newGateway(cfg config.BrokerConfig, quotes broker.CandleQuotes) (tracker.Gateway, error) {
	switch cfg.Mode {
	case "paper", "":
		paper := broker.NewPaperGateway(quotes)
		return broker.NewRateLimited(paper, cfg.RatePerSecond, cfg.Burst), nil
	default:
		return nil, fmt.Errorf("unsupported broker mode %q", cfg.Mode)
	}
}
