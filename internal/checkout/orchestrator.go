// Package checkout turns carts into orders and owns every later change to
// an order: status transitions, cancellation with restocking, and payment
// bookkeeping. Each operation is one ledger transaction; events go out only
// after it commits.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/coupons"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartInactive       = errors.New("cart is not active")
	ErrNotOwner           = errors.New("not owned by caller")
	ErrGuestEmailRequired = errors.New("guest checkout requires an email")
	ErrAddressRequired    = errors.New("shipping address required")
	ErrPaymentRejected    = errors.New("payment rejected")
)

// Pricing is the flat tax and shipping policy applied at commit time.
type Pricing struct {
	TaxRate          decimal.Decimal // fraction, 0.10 = 10%
	ShippingFlatRate decimal.Decimal
	Currency         string
}

// EventPublisher ships committed order events. Failures are logged, never
// returned to the caller: the order is already committed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, env orders.Envelope) error
}

type nopPublisher struct{}

func (nopPublisher) PublishEvent(context.Context, string, orders.Envelope) error { return nil }

type Orchestrator struct {
	store     orders.Store
	inventory *inventory.Manager
	coupons   *coupons.Evaluator
	pricing   Pricing
	events    EventPublisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	producer  string
	now       func() time.Time
	newToken  func() (string, error)
}

func New(store orders.Store, inv *inventory.Manager, cpn *coupons.Evaluator, pricing Pricing, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if pricing.Currency == "" {
		pricing.Currency = "USD"
	}
	return &Orchestrator{
		store:     store,
		inventory: inv,
		coupons:   cpn,
		pricing:   pricing,
		events:    nopPublisher{},
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("github.com/ariefcatur/go-order-fulfillment/internal/checkout"),
		producer:  "order-api",
		now:       func() time.Time { return time.Now().UTC() },
		newToken:  orders.NewGuestToken,
	}
}

func (o *Orchestrator) WithPublisher(p EventPublisher, producer string) *Orchestrator {
	if p != nil {
		o.events = p
	}
	if producer != "" {
		o.producer = producer
	}
	return o
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

func (o *Orchestrator) WithTokenSource(f func() (string, error)) *Orchestrator {
	o.newToken = f
	return o
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, "checkout."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// pending collects events inside a transaction attempt; they are sent only
// after commit, so a retried attempt never leaks events.
type pending struct {
	topic     string
	eventType string
	orderID   string
	payload   any
}

func (o *Orchestrator) publish(ctx context.Context, evs []pending) {
	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	for _, ev := range evs {
		env, err := orders.NewEnvelope(ev.eventType, o.producer, ev.orderID, ev.payload, o.now())
		if err != nil {
			o.logger.Error("build event", zap.String("event", ev.eventType), zap.Error(err))
			continue
		}
		env.TraceID = traceID
		if err := o.events.PublishEvent(ctx, ev.topic, env); err != nil {
			o.logger.Warn("publish event failed",
				zap.String("event", ev.eventType),
				zap.String("order_id", ev.orderID),
				zap.Error(err))
		}
	}
}

func statusChanged(order *orders.Order, from orders.Status, forced bool) pending {
	return pending{
		topic:     orders.TopicOrderStatusChanged,
		eventType: orders.EventOrderStatusChanged,
		orderID:   order.ID,
		payload: orders.OrderStatusChangedPayload{
			OrderID:       order.ID,
			From:          from,
			To:            order.Status,
			PaymentStatus: string(order.PaymentStatus),
			Forced:        forced,
		},
	}
}
