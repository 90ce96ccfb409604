package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// providerRule is the bookkeeping outcome of a payment with one provider.
// Gateways are external; only the resulting state is recorded here.
type providerRule struct {
	instant bool          // payment settles immediately
	target  orders.Status // order status after the payment is recorded
}

var providerRules = map[orders.PaymentProvider]providerRule{
	orders.ProviderCashOnDelivery: {instant: false, target: orders.StatusProcessing},
	orders.ProviderBankTransfer:   {instant: false, target: orders.StatusOnHold},
	orders.ProviderCard:           {instant: true, target: orders.StatusProcessing},
	orders.ProviderPayPal:         {instant: true, target: orders.StatusProcessing},
	orders.ProviderStripe:         {instant: true, target: orders.StatusProcessing},
}

// ProcessPayment records a payment against the order and moves the order's
// payment and fulfilment status accordingly.
func (o *Orchestrator) ProcessPayment(ctx context.Context, orderID string, provider orders.PaymentProvider, amount decimal.Decimal, data map[string]any) (payment *orders.Payment, err error) {
	ctx, span := o.startSpan(ctx, "ProcessPayment",
		attribute.String("order.id", orderID),
		attribute.String("payment.provider", string(provider)))
	defer func() { endSpan(span, err) }()

	rule, ok := providerRules[provider]
	if !ok {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrPaymentRejected, "unknown payment provider %q", provider)
	}
	amount = orders.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrPaymentRejected, "payment amount must be positive")
	}

	var (
		evs  []pending
		from orders.Status
		ord  *orders.Order
	)
	err = o.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		evs = nil
		var err error
		if ord, err = lockOrder(ctx, tx, orderID); err != nil {
			return err
		}
		from = ord.Status
		switch ord.Status {
		case orders.StatusCancelled, orders.StatusRefunded, orders.StatusFailed:
			return apperr.Wrap(apperr.KindBadRequest, ErrPaymentRejected,
				"order %s is %s and cannot take payments", ord.OrderNumber, ord.Status)
		}
		if ord.PaymentStatus == orders.PaymentPaid {
			return apperr.Wrap(apperr.KindBadRequest, ErrPaymentRejected, "order %s is already paid", ord.OrderNumber)
		}

		now := o.now()
		p := &orders.Payment{
			ID:        uuid.NewString(),
			OrderID:   ord.ID,
			Provider:  provider,
			Amount:    amount,
			Currency:  ord.Currency,
			Status:    orders.PaymentPending,
			Data:      data,
			CreatedAt: now,
		}
		if txID, ok := data["transaction_id"].(string); ok && txID != "" {
			p.TransactionID = &txID
		}

		if rule.instant {
			paid, err := settledAmount(ctx, tx, ord.ID)
			if err != nil {
				return err
			}
			due := ord.TotalAmount.Sub(paid)
			if amount.GreaterThan(due) {
				return apperr.Wrap(apperr.KindBadRequest, ErrPaymentRejected,
					"payment of %s exceeds the %s still due on order %s", amount.StringFixed(2), due.StringFixed(2), ord.OrderNumber)
			}
			p.Status = orders.PaymentPaid
			if amount.Equal(due) {
				ord.PaymentStatus = orders.PaymentPaid
			} else {
				ord.PaymentStatus = orders.PaymentPartiallyPaid
			}
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return err
		}

		if ord.Status != rule.target && orders.CanTransition(ord.Status, rule.target) {
			if err := ord.Transition(rule.target, now); err != nil {
				return err
			}
		}
		ord.UpdatedAt = now
		if err := tx.UpdateOrderStatus(ctx, ord); err != nil {
			return err
		}

		evs = append(evs, pending{
			topic:     orders.TopicPaymentRecorded,
			eventType: orders.EventPaymentRecorded,
			orderID:   ord.ID,
			payload: orders.PaymentRecordedPayload{
				OrderID:   ord.ID,
				PaymentID: p.ID,
				Provider:  string(p.Provider),
				Amount:    p.Amount.StringFixed(2),
				Status:    string(p.Status),
			},
		})
		if ord.Status != from {
			evs = append(evs, statusChanged(ord, from, false))
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ord.Status != from {
		o.metrics.Transition(string(from), string(ord.Status))
	}
	o.logger.Info("payment recorded",
		zap.String("order_id", ord.ID),
		zap.String("provider", string(provider)),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("payment_status", string(ord.PaymentStatus)),
		zap.String("order_status", string(ord.Status)))
	o.publish(ctx, evs)
	return payment, nil
}

func settledAmount(ctx context.Context, tx orders.Tx, orderID string) (decimal.Decimal, error) {
	ps, err := tx.ListPayments(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, p := range ps {
		if p.Status == orders.PaymentPaid {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}
