package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads the current value of a single-series counter or gauge.
func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordBacktestRun("success", 2*time.Second)
	m.RecordBondSimulated([]string{"TARGET_REACHED", "TIMEOUT", "TARGET_REACHED"})
	m.RecordBondSkipped("data_unavailable")
	m.RecordPollCycle("completed", time.Second, 3)
	m.RecordPollCycle("skipped", 0, 0)
	m.RecordPairedSell()

	assert.Equal(t, 1.0, value(t, m.BacktestRuns.WithLabelValues("success")))
	assert.Equal(t, 2.0, value(t, m.TradesSimulated.WithLabelValues("TARGET_REACHED")))
	assert.Equal(t, 1.0, value(t, m.BondsSkipped.WithLabelValues("data_unavailable")))
	assert.Equal(t, 1.0, value(t, m.PollCycles.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, value(t, m.ActiveOrders))
	assert.Equal(t, 1.0, value(t, m.PairedSellsCreated))
	assert.Greater(t, value(t, m.LastSuccessfulPoll), 0.0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBacktestRun("error", time.Second)
		m.RecordBondSimulated([]string{"TIMEOUT"})
		m.RecordPollCycle("failed", time.Second, 1)
		m.RecordStatusQuery()
		m.RecordGatewayError("submit")
		m.RecordTransition("BUY", "FILLED")
		m.RecordPairedSell()
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.RecordStatusQuery()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_tracker_status_queries_total 1"))
}
