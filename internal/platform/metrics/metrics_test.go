package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveOperation("transfer", "ok", time.Now())
	m.ObserveOperation("transfer", "rate_limited", time.Now())
	m.ObserveOperation("transfer", "ok", time.Now())
	m.IncrementAccountsCreated()
	m.SetSystemActive(false)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Operations.WithLabelValues("transfer", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Operations.WithLabelValues("transfer", "rate_limited")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AccountsCreated), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.SystemActive), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("transfer", "ok", time.Now())
		m.IncrementAccountsCreated()
		m.AddFeesBurned(0.05)
		m.SetSystemActive(true)
		m.IncRateCache("hit")
	})
}
