package checkout

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// CancelOrder cancels an order and puts its items back on hand in the same
// transaction. actorUserID, when set, must own the order.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string, actorUserID *string) (order *orders.Order, err error) {
	ctx, span := o.startSpan(ctx, "CancelOrder", attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	var (
		evs  []pending
		from orders.Status
	)
	err = o.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		evs = nil
		ord, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if actorUserID != nil && !ord.IsOwnedBy(*actorUserID) {
			return apperr.Wrap(apperr.KindForbidden, ErrNotOwner, "order %s belongs to another customer", orderID)
		}
		if !ord.CanBeCancelled() {
			return apperr.Wrap(apperr.KindBadRequest, orders.ErrNotCancellable,
				"order %s cannot be cancelled in status %s", ord.OrderNumber, ord.Status)
		}
		from = ord.Status
		var restored []orders.ItemQty
		if ord.CancelledAt == nil {
			if restored, err = o.restock(ctx, tx, ord); err != nil {
				return err
			}
		}
		if err := ord.Transition(orders.StatusCancelled, o.now()); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, ord); err != nil {
			return err
		}
		evs = append(evs, statusChanged(ord, from, false), cancelled(ord, restored))
		order = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.metrics.Transition(string(from), string(orders.StatusCancelled))
	o.logger.Info("order cancelled", zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))
	o.publish(ctx, evs)
	return order, nil
}

// TransitionStatus applies a transition allowed by the status table.
// Entering cancelled restocks like CancelOrder.
func (o *Orchestrator) TransitionStatus(ctx context.Context, orderID string, to orders.Status) (*orders.Order, error) {
	return o.changeStatus(ctx, "TransitionStatus", orderID, to, nil, false)
}

// ForceStatus is the admin override. It skips the transition table but keeps
// completion stamping and restocking on cancellation.
func (o *Orchestrator) ForceStatus(ctx context.Context, orderID string, to orders.Status, paymentStatus *orders.PaymentStatus) (*orders.Order, error) {
	if paymentStatus != nil && !paymentStatus.Valid() {
		return nil, apperr.BadRequest("unknown payment status %q", *paymentStatus)
	}
	return o.changeStatus(ctx, "ForceStatus", orderID, to, paymentStatus, true)
}

func (o *Orchestrator) changeStatus(ctx context.Context, op, orderID string, to orders.Status, paymentStatus *orders.PaymentStatus, force bool) (order *orders.Order, err error) {
	ctx, span := o.startSpan(ctx, op,
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(to)),
		attribute.Bool("forced", force))
	defer func() { endSpan(span, err) }()

	var (
		evs  []pending
		from orders.Status
	)
	err = o.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		evs = nil
		ord, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from = ord.Status

		var restored []orders.ItemQty
		if to == orders.StatusCancelled && ord.CancelledAt == nil {
			if restored, err = o.restock(ctx, tx, ord); err != nil {
				return err
			}
		}
		if force {
			err = ord.ForceStatus(to, o.now())
		} else {
			err = ord.Transition(to, o.now())
		}
		if err != nil {
			return err
		}
		if paymentStatus != nil {
			ord.PaymentStatus = *paymentStatus
		}
		if err := tx.UpdateOrderStatus(ctx, ord); err != nil {
			return err
		}
		evs = append(evs, statusChanged(ord, from, force))
		if restored != nil {
			evs = append(evs, cancelled(ord, restored))
		}
		order = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.metrics.Transition(string(from), string(to))
	o.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("forced", force))
	o.publish(ctx, evs)
	return order, nil
}

// restock credits every order line back to inventory. Rows are locked in
// ascending id order, same as checkout. Callers only reach this once per
// order: cancelled_at is stamped on the first cancellation and never cleared.
func (o *Orchestrator) restock(ctx context.Context, tx orders.Tx, ord *orders.Order) ([]orders.ItemQty, error) {
	type credit struct {
		invID string
		item  orders.ItemQty
	}
	credits := make([]credit, 0, len(ord.Items))
	for _, it := range ord.Items {
		rec, err := tx.InventoryByProduct(ctx, it.ProductID, it.VariantID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return nil, apperr.Wrap(apperr.KindNotFound, inventory.ErrInventoryNotFound,
					"no inventory record for %s", it.ProductName)
			}
			return nil, err
		}
		credits = append(credits, credit{invID: rec.ID, item: orders.ItemQty{ProductID: it.ProductID, VariantID: it.VariantID, Qty: it.Quantity}})
	}
	sort.SliceStable(credits, func(i, j int) bool { return credits[i].invID < credits[j].invID })

	ref := inventory.OrderRef(ord.ID)
	restored := make([]orders.ItemQty, 0, len(credits))
	for _, c := range credits {
		if _, err := o.inventory.CreditForCancellationTx(ctx, tx, c.invID, c.item.Qty, orders.MovementReturn, ref); err != nil {
			return nil, err
		}
		restored = append(restored, c.item)
	}
	return restored, nil
}

func (o *Orchestrator) GetOrder(ctx context.Context, orderID string, actorUserID *string) (order *orders.Order, err error) {
	ctx, span := o.startSpan(ctx, "GetOrder", attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	err = o.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		ord, err := tx.OrderByID(ctx, orderID)
		if err != nil {
			return orderNotFound(err, orderID)
		}
		if actorUserID != nil && !ord.IsOwnedBy(*actorUserID) {
			return apperr.Wrap(apperr.KindForbidden, ErrNotOwner, "order %s belongs to another customer", orderID)
		}
		if ord.Items, err = tx.ListOrderItems(ctx, ord.ID); err != nil {
			return err
		}
		order = ord
		return nil
	})
	return order, err
}

// GetOrderByGuestToken is the only lookup open to unauthenticated callers.
func (o *Orchestrator) GetOrderByGuestToken(ctx context.Context, token string) (order *orders.Order, err error) {
	ctx, span := o.startSpan(ctx, "GetOrderByGuestToken")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return nil, apperr.NotFound("order not found")
	}
	err = o.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		ord, err := tx.OrderByGuestToken(ctx, token)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return apperr.Wrap(apperr.KindNotFound, orders.ErrOrderNotFound, "order not found")
			}
			return err
		}
		if ord.Items, err = tx.ListOrderItems(ctx, ord.ID); err != nil {
			return err
		}
		order = ord
		return nil
	})
	return order, err
}

func lockOrder(ctx context.Context, tx orders.Tx, orderID string) (*orders.Order, error) {
	ord, err := tx.OrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, orderNotFound(err, orderID)
	}
	if ord.Items, err = tx.ListOrderItems(ctx, ord.ID); err != nil {
		return nil, err
	}
	return ord, nil
}

func orderNotFound(err error, orderID string) error {
	if errors.Is(err, orders.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, orders.ErrOrderNotFound, "order %s not found", orderID)
	}
	return err
}

func cancelled(ord *orders.Order, restored []orders.ItemQty) pending {
	return pending{
		topic:     orders.TopicOrderCancelled,
		eventType: orders.EventOrderCancelled,
		orderID:   ord.ID,
		payload:   orders.OrderCancelledPayload{OrderID: ord.ID, Restored: restored},
	}
}
