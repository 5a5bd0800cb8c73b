package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal   *prometheus.CounterVec
	candlesFetched *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	sessionState   prometheus.Gauge
	deltaSeconds   prometheus.Gauge
	refreshTotal   *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5pull_fetches_total",
				Help: "Total number of candle fetches served",
			},
			[]string{"op", "symbol"},
		),
		candlesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5pull_candles_fetched_total",
				Help: "Total number of candles returned to callers",
			},
			[]string{"op"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5pull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		sessionState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mt5pull_session_state",
				Help: "Terminal session state (0=uninitialized, 1=ready, 2=failed)",
			},
		),
		deltaSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mt5pull_delta_seconds",
				Help: "Current server-time-to-UTC delta in seconds",
			},
		),
		refreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mt5pull_delta_refresh_total",
				Help: "Delta refresh cycles by outcome",
			},
			[]string{"outcome"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mt5pull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one served fetch and its candle count.
func (r *Recorder) RecordFetch(op, symbol string, candles int) {
	r.fetchesTotal.WithLabelValues(op, symbol).Inc()
	r.candlesFetched.WithLabelValues(op).Add(float64(candles))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSessionState records the session lifecycle state.
func (r *Recorder) RecordSessionState(state int32) {
	r.sessionState.Set(float64(state))
}

// RecordDeltaSeconds records the active delta value.
func (r *Recorder) RecordDeltaSeconds(seconds float64) {
	r.deltaSeconds.Set(seconds)
}

// RecordRefresh records one background refresh cycle.
func (r *Recorder) RecordRefresh(ok bool, seconds float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.refreshTotal.WithLabelValues(outcome).Inc()
	r.latency.WithLabelValues("delta_refresh").Observe(seconds)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
