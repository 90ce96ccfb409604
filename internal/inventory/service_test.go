package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/sqlite/sqlitetest"
)

func newManager(t *testing.T) *inventory.Manager {
	t.Helper()
	clock := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	return inventory.NewManager(sqlitetest.New(t), zap.NewNop(), nil).
		WithClock(func() time.Time { return clock })
}

func register(t *testing.T, m *inventory.Manager, productID string, qty int, reorder *int) *orders.InventoryRecord {
	t.Helper()
	rec, err := m.Register(context.Background(), inventory.RegisterInput{
		ProductID: productID, Quantity: qty, ReorderPoint: reorder,
	})
	require.NoError(t, err)
	return rec
}

func drift(t *testing.T, m *inventory.Manager, id string) int {
	t.Helper()
	ctx := context.Background()
	rec, err := m.Get(ctx, id)
	require.NoError(t, err)
	mvs, err := m.History(ctx, id)
	require.NoError(t, err)
	return inventory.Reconcile(rec, mvs)
}

func TestRegisterBooksOpeningStock(t *testing.T) {
	m := newManager(t)
	rec := register(t, m, "p-1", 10, nil)

	assert.Equal(t, 10, rec.Quantity)
	assert.Equal(t, orders.InventoryInStock, rec.Status)

	mvs, err := m.History(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, mvs, 1)
	assert.Equal(t, orders.MovementReceipt, mvs[0].MovementType)
	assert.Equal(t, 10, mvs[0].Quantity)
	assert.Equal(t, 0, drift(t, m, rec.ID))

	avail, err := m.GetAvailable(context.Background(), "p-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 10, avail)
}

func TestGetAvailableUnknownProduct(t *testing.T) {
	m := newManager(t)
	_, err := m.GetAvailable(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()

	t.Run("floors at zero and records the requested delta", func(t *testing.T) {
		m := newManager(t)
		rec := register(t, m, "p-1", 10, nil)

		got, mv, err := m.Adjust(ctx, rec.ID, -15, orders.MovementDamaged, inventory.AdjustOptions{Notes: "water damage"})
		require.NoError(t, err)
		assert.Equal(t, 0, got.Quantity)
		assert.Equal(t, orders.InventoryOutOfStock, got.Status)
		assert.Equal(t, -15, mv.Quantity)
		assert.Equal(t, "water damage", mv.Notes)
		// the clamp is visible as drift
		assert.Equal(t, 5, drift(t, m, rec.ID))
	})

	t.Run("clamps reserved to quantity", func(t *testing.T) {
		m := newManager(t)
		rec := register(t, m, "p-1", 10, nil)
		_, err := m.Reserve(ctx, rec.ID, 8, nil, "")
		require.NoError(t, err)

		got, _, err := m.Adjust(ctx, rec.ID, -5, orders.MovementAdjustment, inventory.AdjustOptions{})
		require.NoError(t, err)
		assert.Equal(t, 5, got.Quantity)
		assert.Equal(t, 5, got.ReservedQuantity)
		assert.Equal(t, 0, got.Available())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		m := newManager(t)
		rec := register(t, m, "p-1", 10, nil)

		_, _, err := m.Adjust(ctx, rec.ID, 0, orders.MovementAdjustment, inventory.AdjustOptions{})
		assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

		for _, mt := range []orders.MovementType{orders.MovementReserved, orders.MovementReleased, "lost"} {
			_, _, err = m.Adjust(ctx, rec.ID, 1, mt, inventory.AdjustOptions{})
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err), mt)
		}

		_, _, err = m.Adjust(ctx, "missing", 1, orders.MovementReceipt, inventory.AdjustOptions{})
		assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)
	})

	t.Run("refreshes status against reorder point", func(t *testing.T) {
		m := newManager(t)
		reorder := 3
		rec := register(t, m, "p-1", 10, &reorder)
		got, _, err := m.Adjust(ctx, rec.ID, -7, orders.MovementSale, inventory.AdjustOptions{})
		require.NoError(t, err)
		assert.Equal(t, orders.InventoryLowStock, got.Status)
	})
}

func TestReserveRelease(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	rec := register(t, m, "p-1", 10, nil)

	_, err := m.Reserve(ctx, rec.ID, 11, nil, "")
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "product p-1")

	_, err = m.Reserve(ctx, rec.ID, 0, nil, "")
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	got, err := m.Reserve(ctx, rec.ID, 4, inventory.OrderRef("o-1"), "hold")
	require.NoError(t, err)
	assert.Equal(t, 4, got.ReservedQuantity)
	assert.Equal(t, 6, got.Available())
	assert.Equal(t, 10, got.Quantity)

	got, err = m.Release(ctx, rec.ID, 10, inventory.OrderRef("o-1"), "")
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedQuantity)

	mvs, err := m.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, mvs, 3)
	assert.Equal(t, orders.MovementReserved, mvs[1].MovementType)
	assert.Equal(t, 4, mvs[1].Quantity)
	assert.Equal(t, "o-1", *mvs[1].ReferenceID)
	assert.Equal(t, inventory.RefTypeOrder, *mvs[1].ReferenceType)
	assert.Equal(t, orders.MovementReleased, mvs[2].MovementType)
	assert.Equal(t, -10, mvs[2].Quantity)
	assert.Equal(t, 0, drift(t, m, rec.ID))
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	rec := register(t, m, "p-1", 10, nil)

	got, err := m.SetQuantity(ctx, rec.ID, 15, inventory.AdjustOptions{})
	require.NoError(t, err)
	assert.Equal(t, 15, got.Quantity)

	_, err = m.SetQuantity(ctx, rec.ID, 15, inventory.AdjustOptions{})
	require.NoError(t, err)

	got, err = m.SetQuantity(ctx, rec.ID, 3, inventory.AdjustOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	_, err = m.SetQuantity(ctx, rec.ID, -1, inventory.AdjustOptions{})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	mvs, err := m.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, mvs, 3)
	assert.Equal(t, orders.MovementReceipt, mvs[1].MovementType)
	assert.Equal(t, 5, mvs[1].Quantity)
	assert.Equal(t, orders.MovementAdjustment, mvs[2].MovementType)
	assert.Equal(t, -12, mvs[2].Quantity)
	assert.Equal(t, 0, drift(t, m, rec.ID))
}

func TestDebitAndCredit(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	rec := register(t, m, "p-1", 5, nil)

	_, err := m.DebitForSale(ctx, rec.ID, 6, inventory.OrderRef("o-1"))
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	got, err := m.DebitForSale(ctx, rec.ID, 5, inventory.OrderRef("o-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, orders.InventoryOutOfStock, got.Status)

	_, err = m.CreditForCancellation(ctx, rec.ID, 5, orders.MovementSale, inventory.OrderRef("o-1"))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	got, err = m.CreditForCancellation(ctx, rec.ID, 5, orders.MovementReturn, inventory.OrderRef("o-1"))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, orders.InventoryInStock, got.Status)
	assert.Equal(t, 0, drift(t, m, rec.ID))
}

func TestConcurrentDebitsNeverOversell(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	rec := register(t, m, "p-1", 5, nil)

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.DebitForSale(ctx, rec.ID, 1, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
			fail++
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, workers-5, fail)
	got, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, 0, drift(t, m, rec.ID))
}

func TestConcurrentReservesNeverOverbook(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	rec := register(t, m, "p-1", 10, nil)
	_, err := m.Reserve(ctx, rec.ID, 3, inventory.OrderRef("o-0"), "")
	require.NoError(t, err)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Reserve(ctx, rec.ID, 1, nil, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
			fail++
		}()
	}
	wg.Wait()

	assert.Equal(t, 7, ok)
	assert.Equal(t, workers-7, fail)
	got, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
	assert.Equal(t, 10, got.ReservedQuantity)
	assert.GreaterOrEqual(t, got.ReservedQuantity, 0)
	assert.LessOrEqual(t, got.ReservedQuantity, got.Quantity)
	assert.Equal(t, 0, got.Available())
	assert.Equal(t, 0, drift(t, m, rec.ID))
}

func TestReconcile(t *testing.T) {
	rec := &orders.InventoryRecord{Quantity: 7}
	mvs := []orders.StockMovement{
		{Quantity: 10, MovementType: orders.MovementReceipt},
		{Quantity: 4, MovementType: orders.MovementReserved},
		{Quantity: -3, MovementType: orders.MovementSale},
		{Quantity: -4, MovementType: orders.MovementReleased},
	}
	assert.Equal(t, 0, inventory.Reconcile(rec, mvs))
	rec.Quantity = 9
	assert.Equal(t, 2, inventory.Reconcile(rec, mvs))
}
