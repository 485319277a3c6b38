package obs

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the compliance engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	httpDuration    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	ledgerOps       *prometheus.CounterVec
	poolsCreated    prometheus.Counter
	poolRejections  *prometheus.CounterVec
	calculationsRun prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fueleu_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fueleu_http_requests_total",
				Help: "Total HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fueleu_ledger_operations_total",
				Help: "Total banking ledger operations by kind and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		poolsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fueleu_pools_created_total",
				Help: "Total compliance pools successfully created.",
			},
		),
		poolRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fueleu_pool_rejections_total",
				Help: "Total rejected pool proposals by reason.",
			},
			[]string{"reason"},
		),
		calculationsRun: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fueleu_cb_calculations_total",
				Help: "Total compliance balance calculations persisted.",
			},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// IncrLedgerOp increments the banking operation counter.
// operation is "bank" or "apply"; outcome is "ok" or "rejected".
func (m *Metrics) IncrLedgerOp(operation, outcome string) {
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
}

// IncrPoolCreated increments the successful pool counter.
func (m *Metrics) IncrPoolCreated() {
	m.poolsCreated.Inc()
}

// IncrPoolRejected increments the pool rejection counter.
func (m *Metrics) IncrPoolRejected(reason string) {
	m.poolRejections.WithLabelValues(reason).Inc()
}

// IncrCalculation increments the persisted calculation counter.
func (m *Metrics) IncrCalculation() {
	m.calculationsRun.Inc()
}
