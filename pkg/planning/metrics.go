package planning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for planning runs.
// A nil *Metrics records nothing.
// 計画計算のPrometheusメトリクス
type Metrics struct {
	runs               *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	componentsAnalyzed prometheus.Gauge
	resultRows         prometheus.Gauge
	shortages          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
// メトリクスを作成して登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mrp",
			Name:      "runs_total",
			Help:      "Number of planning runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mrp",
			Name:      "run_duration_seconds",
			Help:      "Duration of planning runs by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		componentsAnalyzed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mrp",
			Name:      "components_analyzed",
			Help:      "Components projected by the last successful run.",
		}),
		resultRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mrp",
			Name:      "result_rows",
			Help:      "Result rows written by the last successful run.",
		}),
		shortages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mrp",
			Name:      "shortages",
			Help:      "Components that go negative within the horizon of the last successful run.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.runDuration, m.componentsAnalyzed, m.resultRows, m.shortages)
	}

	return m
}

func (m *Metrics) observeSuccess(summary *RunSummary) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.runDuration.WithLabelValues("success").Observe(summary.Duration.Seconds())
	m.componentsAnalyzed.Set(float64(summary.ComponentsAnalyzed))
	m.resultRows.Set(float64(summary.ResultRows))
	m.shortages.Set(float64(len(summary.Shortages)))
}

func (m *Metrics) observeFailure(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// observeRejected counts a run refused because another is in progress
func (m *Metrics) observeRejected() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("rejected").Inc()
}
