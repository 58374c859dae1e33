// Package metrics provides Prometheus metrics collection for the game kernel.
package metrics

import (
	"time"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "menagerie"

// Collector holds all Prometheus metrics for the kernel.
type Collector struct {
	// Kernel operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	LockWait          prometheus.Histogram
	CommitConflicts   prometheus.Counter

	// Turn metrics
	TurnsTotal     prometheus.Counter
	TurnMoneyDelta prometheus.Histogram
	UnpaidExpenses *prometheus.CounterVec

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Tables metrics
	TablesReloads      prometheus.Counter
	TablesReloadErrors prometheus.Counter
	TablesLastReload   prometheus.Gauge
}

// NewWithRegistry creates a new metrics collector registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of kernel operations by outcome",
			},
			[]string{"op", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Kernel operation duration in seconds, lock wait included",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
		LockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "player_lock_wait_seconds",
				Help:      "Time spent waiting for a player lock",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		CommitConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commit_conflicts_total",
				Help:      "Total number of commits rejected for a stale version",
			},
		),

		TurnsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of committed turns",
			},
		),
		TurnMoneyDelta: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_money_delta",
				Help:      "Net balance change per committed turn",
				Buckets:   []float64{-1000, -250, -100, -25, 0, 25, 100, 250, 1000, 5000},
			},
		),
		UnpaidExpenses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unpaid_expenses_total",
				Help:      "Total number of turn expenses skipped for lack of funds",
			},
			[]string{"module"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		TablesReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tables_reloads_total",
				Help:      "Total number of successful game table reloads",
			},
		),
		TablesReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tables_reload_errors_total",
				Help:      "Total number of rejected game table reloads",
			},
		),
		TablesLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tables_last_reload_timestamp",
				Help:      "Unix timestamp of the last successful game table reload",
			},
		),
	}
}

// ObserveOperation records one kernel operation. The result label is
// "ok" or the stable error code of err.
func (c *Collector) ObserveOperation(op string, err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = fault.Code(err)
	}
	c.OperationsTotal.WithLabelValues(op, result).Inc()
	c.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveLockWait records time spent waiting for a player lock.
func (c *Collector) ObserveLockWait(d time.Duration) {
	if c == nil {
		return
	}
	c.LockWait.Observe(d.Seconds())
}

// ObserveConflict counts a commit rejected for a stale version.
func (c *Collector) ObserveConflict() {
	if c == nil {
		return
	}
	c.CommitConflicts.Inc()
}

// ObserveTurn records a committed turn and the modules whose expenses went
// unpaid.
func (c *Collector) ObserveTurn(moneyDelta int64, unpaid []string) {
	if c == nil {
		return
	}
	c.TurnsTotal.Inc()
	c.TurnMoneyDelta.Observe(float64(moneyDelta))
	for _, m := range unpaid {
		c.UnpaidExpenses.WithLabelValues(m).Inc()
	}
}

// ObserveReload records a table reload attempt at t.
func (c *Collector) ObserveReload(err error, t time.Time) {
	if c == nil {
		return
	}
	if err != nil {
		c.TablesReloadErrors.Inc()
		return
	}
	c.TablesReloads.Inc()
	c.TablesLastReload.Set(float64(t.Unix()))
}

// StatusClass reduces cardinality by collapsing a status code to its class.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Ensure interface compliance.
var _ ports.Recorder = (*Collector)(nil)
