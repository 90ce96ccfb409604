package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Checkout("ok", time.Second)
		m.Movement("sale")
		m.StockRejected()
		m.Coupon("applied")
		m.Transition("pending", "processing")
		m.Request("checkout", 201, time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Movement("sale")
	m.Movement("sale")
	m.Movement("receipt")
	m.Checkout("ok", 20*time.Millisecond)
	m.StockRejected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Movements.WithLabelValues("sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Movements.WithLabelValues("receipt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsufficientStock))
}
