package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	AccountsCreated  prometheus.Counter
	FeesBurned       prometheus.Counter
	SystemActive     prometheus.Gauge
	RateCacheHits    *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by name and outcome code",
		}, []string{"operation", "outcome"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Latency of ledger operations including the unit of work",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_accounts_registered_total",
			Help: "Total number of accounts registered",
		}),
		FeesBurned: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_fees_burned_tokens_total",
			Help: "Transfer fees removed from circulation, in whole tokens (approximate)",
		}),
		SystemActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_system_active",
			Help: "1 when the ledger accepts user operations, 0 when paused",
		}),
		RateCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_rate_cache_lookups_total",
			Help: "Exchange rate cache lookups by result (hit, miss, bypass)",
		}, []string{"result"}),
	}
}

// ObserveOperation records one operation outcome; outcome is "ok" or an error code.
func (m *Metrics) ObserveOperation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncrementAccountsCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}

func (m *Metrics) AddFeesBurned(tokens float64) {
	if m == nil {
		return
	}
	m.FeesBurned.Add(tokens)
}

func (m *Metrics) SetSystemActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SystemActive.Set(1)
	} else {
		m.SystemActive.Set(0)
	}
}

func (m *Metrics) IncRateCache(result string) {
	if m == nil {
		return
	}
	m.RateCacheHits.WithLabelValues(result).Inc()
}
