package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fulfillment"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	Requests           *prometheus.CounterVec
	LatencyMS          *prometheus.HistogramVec
	Checkouts          *prometheus.CounterVec
	CheckoutDuration   prometheus.Histogram
	Movements          *prometheus.CounterVec
	InsufficientStock  prometheus.Counter
	CouponApplications *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Cart to order commits by result.",
		}, []string{"result"}),
		CheckoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Duration of the checkout transaction including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		Movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "movements_total",
			Help:      "Stock movements written by type.",
		}, []string{"type"}),
		InsufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "insufficient_stock_total",
			Help:      "Reserve or debit attempts rejected for lack of stock.",
		}),
		CouponApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "applications_total",
			Help:      "Coupon validations and applications by result.",
		}, []string{"result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "transitions_total",
			Help:      "Order status changes.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.Checkouts, m.CheckoutDuration,
		m.Movements, m.InsufficientStock, m.CouponApplications, m.Transitions)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) Checkout(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
	m.CheckoutDuration.Observe(d.Seconds())
}

func (m *Metrics) Movement(movementType string) {
	if m == nil {
		return
	}
	m.Movements.WithLabelValues(movementType).Inc()
}

func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.InsufficientStock.Inc()
}

func (m *Metrics) Coupon(result string) {
	if m == nil {
		return
	}
	m.CouponApplications.WithLabelValues(result).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Request(handler string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(d.Milliseconds()))
}
