package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusOnHold, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusOnHold, StatusProcessing, true},
		{StatusOnHold, StatusShipped, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusReturned, true},
		{StatusShipped, StatusFailed, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCompleted, true},
		{StatusDelivered, StatusReturned, true},
		{StatusCompleted, StatusReturned, true},
		{StatusCompleted, StatusRefunded, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusReturned, StatusRefunded, true},
		{StatusCancelled, StatusRefunded, true},
		{StatusCancelled, StatusPending, false},
		{StatusFailed, StatusProcessing, true},
		{StatusFailed, StatusCancelled, true},
		{StatusRefunded, StatusPending, false},
		{StatusRefunded, StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRefundedIsTerminal(t *testing.T) {
	for to := range validNext {
		assert.False(t, CanTransition(StatusRefunded, to), "refunded -> %s", to)
	}
}

func TestTransitionSequence(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusPending}

	err := o.Transition(StatusShipped, now)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, StatusPending, o.Status)

	require.NoError(t, o.Transition(StatusProcessing, now))
	require.NoError(t, o.Transition(StatusShipped, now))
	assert.Equal(t, StatusShipped, o.Status)
}

func TestCompletedAtStampedOnce(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	o := &Order{Status: StatusDelivered}
	require.NoError(t, o.Transition(StatusCompleted, first))
	require.NotNil(t, o.CompletedAt)
	assert.Equal(t, first, *o.CompletedAt)

	// admin re-forcing completed must not move the stamp
	require.NoError(t, o.ForceStatus(StatusCompleted, later))
	assert.Equal(t, first, *o.CompletedAt)

	// completed -> completed is not in the table
	assert.ErrorIs(t, o.Transition(StatusCompleted, later), ErrInvalidTransition)
	assert.Equal(t, first, *o.CompletedAt)
}

func TestForceStatus(t *testing.T) {
	now := time.Now().UTC()
	o := &Order{Status: StatusRefunded}

	require.NoError(t, o.ForceStatus(StatusCompleted, now))
	assert.Equal(t, StatusCompleted, o.Status)
	assert.NotNil(t, o.CompletedAt)

	require.NoError(t, o.ForceStatus(StatusCancelled, now))
	assert.NotNil(t, o.CancelledAt)

	err := o.ForceStatus(Status("lost"), now)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestCanBeCancelled(t *testing.T) {
	for s := range validNext {
		o := &Order{Status: s}
		want := s == StatusPending || s == StatusProcessing || s == StatusOnHold
		assert.Equal(t, want, o.CanBeCancelled(), string(s))
	}
}

func TestCanBeRefunded(t *testing.T) {
	tests := []struct {
		status  Status
		payment PaymentStatus
		want    bool
	}{
		{StatusCompleted, PaymentPaid, true},
		{StatusDelivered, PaymentPartiallyRefunded, true},
		{StatusProcessing, PaymentPending, false},
		{StatusCancelled, PaymentPaid, false},
		{StatusRefunded, PaymentPaid, false},
		{StatusFailed, PaymentPaid, false},
		{StatusCompleted, PaymentRefunded, false},
	}
	for _, tt := range tests {
		o := &Order{Status: tt.status, PaymentStatus: tt.payment}
		assert.Equal(t, tt.want, o.CanBeRefunded(), "%s/%s", tt.status, tt.payment)
	}
}
