package orders

import (
	"errors"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotCancellable    = errors.New("order cannot be cancelled")
	ErrOrderNotFound     = errors.New("order not found")
)

// Transition moves the order to `to` if the transition table allows it.
// Restocking on cancellation is the caller's job and must share the
// transaction that persists the new status.
func (o *Order) Transition(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return apperr.Wrap(apperr.KindBadRequest, ErrInvalidTransition,
			"cannot change order status from %s to %s", o.Status, to)
	}
	o.apply(to, now)
	return nil
}

// ForceStatus is the admin override: no table check, same stamping rules.
func (o *Order) ForceStatus(to Status, now time.Time) error {
	if !to.Valid() {
		return apperr.BadRequest("unknown order status %q", to)
	}
	o.apply(to, now)
	return nil
}

func (o *Order) apply(to Status, now time.Time) {
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusCompleted:
		if o.CompletedAt == nil {
			t := now
			o.CompletedAt = &t
		}
	case StatusCancelled:
		if o.CancelledAt == nil {
			t := now
			o.CancelledAt = &t
		}
	}
}

func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case StatusPending, StatusProcessing, StatusOnHold:
		return true
	}
	return false
}

func (o *Order) CanBeRefunded() bool {
	if o.PaymentStatus != PaymentPaid && o.PaymentStatus != PaymentPartiallyRefunded {
		return false
	}
	switch o.Status {
	case StatusRefunded, StatusFailed, StatusCancelled:
		return false
	}
	return true
}
