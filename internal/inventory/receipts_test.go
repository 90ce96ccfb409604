package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type memDedup struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (d *memDedup) Claim(_ context.Context, service, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.claimed == nil {
		d.claimed = map[string]bool{}
	}
	k := service + ":" + id
	if d.claimed[k] {
		return false, nil
	}
	d.claimed[k] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, service, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, service+":"+id)
	return nil
}

func receipt(t *testing.T, productID string, qty int) orders.Envelope {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventStockReceived, "warehouse", "",
		orders.StockReceivedPayload{ProductID: productID, Quantity: qty, Reference: "GRN-7", Notes: "PO 42"},
		time.Date(2026, 10, 18, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return env
}

func TestReceiptHandlerAppliesOnce(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	rec := register(t, m, "p-1", 2, nil)
	h := inventory.NewReceiptHandler(m, &memDedup{}, zap.NewNop())

	env := receipt(t, "p-1", 5)
	require.NoError(t, h.Handle(ctx, env))
	require.NoError(t, h.Handle(ctx, env))

	got, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)

	mvs, err := m.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, mvs, 2)
	last := mvs[1]
	assert.Equal(t, orders.MovementReceipt, last.MovementType)
	assert.Equal(t, 5, last.Quantity)
	require.NotNil(t, last.ReferenceID)
	assert.Equal(t, "GRN-7", *last.ReferenceID)
	assert.Equal(t, inventory.RefTypeReceipt, *last.ReferenceType)
	assert.Equal(t, 0, drift(t, m, rec.ID))
}

func TestReceiptHandlerReleasesClaimOnFailure(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	dedup := &memDedup{}
	h := inventory.NewReceiptHandler(m, dedup, zap.NewNop())

	env := receipt(t, "p-late", 3)
	err := h.Handle(ctx, env)
	assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)

	rec := register(t, m, "p-late", 0, nil)
	require.NoError(t, h.Handle(ctx, env))
	got, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
}

func TestReceiptHandlerRejects(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	register(t, m, "p-1", 1, nil)

	h := inventory.NewReceiptHandler(m, &memDedup{}, zap.NewNop())
	other := receipt(t, "p-1", 1)
	other.EventType = orders.EventOrderCreated
	assert.ErrorIs(t, h.Handle(ctx, other), inventory.ErrNotReceipt)

	assert.ErrorIs(t, h.Handle(ctx, receipt(t, "p-1", 0)), inventory.ErrInvalidQuantity)

	broken := receipt(t, "p-1", 1)
	broken.Payload = []byte(`"x"`)
	assert.Error(t, h.Handle(ctx, broken))

	down := inventory.NewReceiptHandler(m, &memDedup{err: errors.New("redis down")}, zap.NewNop())
	assert.Error(t, down.Handle(ctx, receipt(t, "p-1", 1)))
}
