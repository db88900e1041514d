package metrics

import (
	"FinEdge/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	signals       *prometheus.CounterVec
	exits         *prometheus.CounterVec
	realizedPnL   *prometheus.HistogramVec
	openPositions prometheus.Gauge
	dropped       *prometheus.CounterVec
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finedge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finedge_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finedge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finedge_signals_total",
				Help: "Accepted trading signals by strategy and action",
			},
			[]string{"strategy", "action"},
		),
		exits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finedge_position_exits_total",
				Help: "Closed positions by profit-lock method and exit reason",
			},
			[]string{"method", "reason"},
		),
		realizedPnL: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finedge_realized_pnl",
				Help:    "Realized PnL of closed paper positions",
				Buckets: []float64{-100, -25, -10, -5, -1, 0, 1, 5, 10, 25, 100},
			},
			[]string{"method"},
		),
		openPositions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "finedge_open_positions",
				Help: "Currently open paper positions",
			},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finedge_dropped_total",
				Help: "Items dropped by best-effort queues",
			},
			[]string{"queue"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordSignal(strategyID string, action models.Action) {
	r.signals.WithLabelValues(strategyID, string(action)).Inc()
}

// RecordPositionExit counts the exit and observes its PnL.
func (r *Recorder) RecordPositionExit(method models.ProfitLockMethod, reason string, pnl float64) {
	r.exits.WithLabelValues(string(method), reason).Inc()
	r.realizedPnL.WithLabelValues(string(method)).Observe(pnl)
}

func (r *Recorder) SetOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

func (r *Recorder) RecordDropped(queue string) {
	r.dropped.WithLabelValues(queue).Inc()
}
