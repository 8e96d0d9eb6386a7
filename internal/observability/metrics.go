// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	// Backtest metrics
	BacktestRuns     *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	BondsSimulated   prometheus.Counter
	BondsSkipped     *prometheus.CounterVec
	TradesSimulated  *prometheus.CounterVec

	// Tracker metrics
	PollCycles         *prometheus.CounterVec
	PollDuration       prometheus.Histogram
	StatusQueries      prometheus.Counter
	GatewayErrors      *prometheus.CounterVec
	OrderTransitions   *prometheus.CounterVec
	PairedSellsCreated prometheus.Counter
	ActiveOrders       prometheus.Gauge

	// Health metrics
	LastSuccessfulPoll     prometheus.Gauge
	LastSuccessfulBacktest prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "bond_reversion_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Backtest metrics
		BacktestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		BondsSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bonds_simulated_total",
			Help:      "Total number of bonds simulated",
		}),
		BondsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bonds_skipped_total",
			Help:      "Total number of bonds excluded from a run by reason",
		}, []string{"reason"}),
		TradesSimulated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of simulated trades by exit reason",
		}, []string{"exit_reason"}),

		// Tracker metrics
		PollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "poll_cycles_total",
			Help:      "Total number of poll cycles by outcome",
		}, []string{"outcome"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "poll_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		StatusQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "status_queries_total",
			Help:      "Total number of broker order status queries",
		}),
		GatewayErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "gateway_errors_total",
			Help:      "Total number of broker gateway errors by operation",
		}, []string{"operation"}),
		OrderTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "order_transitions_total",
			Help:      "Total number of order status transitions by direction and new status",
		}, []string{"direction", "status"}),
		PairedSellsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "paired_sells_created_total",
			Help:      "Total number of paired SELL orders created on BUY fill",
		}),
		ActiveOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "active_orders",
			Help:      "Number of orders polled in the last cycle",
		}),

		// Health metrics
		LastSuccessfulPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last completed poll cycle",
		}),
		LastSuccessfulBacktest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last completed backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint serving g.
// A nil g serves prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordBacktestRun records a finished backtest run.
func (m *Metrics) RecordBacktestRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BacktestRuns.WithLabelValues(status).Inc()
	m.BacktestDuration.Observe(duration.Seconds())
	if status == "success" {
		m.LastSuccessfulBacktest.SetToCurrentTime()
	}
}

// RecordBondSimulated records a simulated bond and its trades.
func (m *Metrics) RecordBondSimulated(exitReasons []string) {
	if m == nil {
		return
	}
	m.BondsSimulated.Inc()
	for _, r := range exitReasons {
		m.TradesSimulated.WithLabelValues(r).Inc()
	}
}

// RecordBondSkipped records a bond excluded from a run.
func (m *Metrics) RecordBondSkipped(reason string) {
	if m == nil {
		return
	}
	m.BondsSkipped.WithLabelValues(reason).Inc()
}

// RecordPollCycle records a poll cycle outcome ("completed", "skipped", "failed").
func (m *Metrics) RecordPollCycle(outcome string, duration time.Duration, active int) {
	if m == nil {
		return
	}
	m.PollCycles.WithLabelValues(outcome).Inc()
	if outcome == "skipped" {
		return
	}
	m.PollDuration.Observe(duration.Seconds())
	m.ActiveOrders.Set(float64(active))
	if outcome == "completed" {
		m.LastSuccessfulPoll.SetToCurrentTime()
	}
}

// RecordStatusQuery increments the status query counter.
func (m *Metrics) RecordStatusQuery() {
	if m == nil {
		return
	}
	m.StatusQueries.Inc()
}

// RecordGatewayError records a failed gateway call.
func (m *Metrics) RecordGatewayError(operation string) {
	if m == nil {
		return
	}
	m.GatewayErrors.WithLabelValues(operation).Inc()
}

// RecordTransition records an order entering status.
func (m *Metrics) RecordTransition(direction, status string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(direction, status).Inc()
}

// RecordPairedSell increments the paired sell counter.
func (m *Metrics) RecordPairedSell() {
	if m == nil {
		return
	}
	m.PairedSellsCreated.Inc()
}
