package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInventoryNotFound = errors.New("inventory not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

const RefTypeOrder = "order"

type Reference struct {
	ID   string
	Type string
}

// OrderRef points a movement at the order that caused it.
func OrderRef(orderID string) *Reference {
	return &Reference{ID: orderID, Type: RefTypeOrder}
}

type AdjustOptions struct {
	Reference *Reference
	Notes     string
	ActorID   *string
}

type RegisterInput struct {
	ProductID    string
	VariantID    *string
	Quantity     int
	ReorderPoint *int
	LocationID   *string
	ActorID      *string
}

// Manager owns every quantity change of an inventory row. Each public method
// runs in its own transaction; the ...Tx variants join a caller's transaction
// and lock the row themselves.
type Manager struct {
	store   orders.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewManager(store orders.Store, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Get(ctx context.Context, inventoryID string) (*orders.InventoryRecord, error) {
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, err = lock(ctx, tx, inventoryID)
		return err
	})
	return rec, err
}

func (m *Manager) GetAvailable(ctx context.Context, productID string, variantID *string) (int, error) {
	var avail int
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		rec, err := tx.InventoryByProduct(ctx, productID, variantID)
		if err != nil {
			return notFound(err, productLabel(productID, variantID))
		}
		avail = rec.Available()
		return nil
	})
	return avail, err
}

// Register creates the row at zero and books the opening stock as a receipt,
// so the movement log alone explains the on-hand quantity.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*orders.InventoryRecord, error) {
	if in.Quantity < 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "initial quantity must not be negative")
	}
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		now := m.now()
		rec = &orders.InventoryRecord{
			ID:           uuid.NewString(),
			ProductID:    in.ProductID,
			VariantID:    in.VariantID,
			ReorderPoint: in.ReorderPoint,
			LocationID:   in.LocationID,
			Status:       orders.InventoryOutOfStock,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		rec.RefreshStatus()
		if err := tx.CreateInventory(ctx, rec); err != nil {
			return fmt.Errorf("create inventory: %w", err)
		}
		if in.Quantity == 0 {
			return nil
		}
		_, err := m.book(ctx, tx, rec, in.Quantity, orders.MovementReceipt,
			AdjustOptions{Notes: "opening stock", ActorID: in.ActorID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) Adjust(ctx context.Context, inventoryID string, delta int, mt orders.MovementType, opts AdjustOptions) (*orders.InventoryRecord, *orders.StockMovement, error) {
	var (
		rec *orders.InventoryRecord
		mv  *orders.StockMovement
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, mv, err = m.AdjustTx(ctx, tx, inventoryID, delta, mt, opts)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, mv, nil
}

// AdjustTx adds delta to on-hand stock. A result below zero is floored at
// zero; the movement still records the delta that was asked for.
func (m *Manager) AdjustTx(ctx context.Context, tx orders.InventoryRepo, inventoryID string, delta int, mt orders.MovementType, opts AdjustOptions) (*orders.InventoryRecord, *orders.StockMovement, error) {
	if delta == 0 {
		return nil, nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "adjustment delta must not be zero")
	}
	if !mt.Valid() || !mt.AffectsOnHand() {
		return nil, nil, apperr.BadRequest("movement type %q cannot adjust on-hand stock", mt)
	}
	rec, err := lock(ctx, tx, inventoryID)
	if err != nil {
		return nil, nil, err
	}
	mv, err := m.book(ctx, tx, rec, delta, mt, opts)
	if err != nil {
		return nil, nil, err
	}
	return rec, mv, nil
}

func (m *Manager) Reserve(ctx context.Context, inventoryID string, qty int, ref *Reference, notes string) (*orders.InventoryRecord, error) {
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, err = m.ReserveTx(ctx, tx, inventoryID, qty, ref, notes)
		return err
	})
	return rec, err
}

func (m *Manager) ReserveTx(ctx context.Context, tx orders.InventoryRepo, inventoryID string, qty int, ref *Reference, notes string) (*orders.InventoryRecord, error) {
	if qty <= 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "reserve quantity must be positive")
	}
	rec, err := lock(ctx, tx, inventoryID)
	if err != nil {
		return nil, err
	}
	if rec.Available() < qty {
		m.metrics.StockRejected()
		return nil, insufficient(rec, qty, rec.Available())
	}
	rec.ReservedQuantity += qty
	if err := m.record(ctx, tx, rec, qty, orders.MovementReserved, AdjustOptions{Reference: ref, Notes: notes}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) Release(ctx context.Context, inventoryID string, qty int, ref *Reference, notes string) (*orders.InventoryRecord, error) {
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, err = m.ReleaseTx(ctx, tx, inventoryID, qty, ref, notes)
		return err
	})
	return rec, err
}

func (m *Manager) ReleaseTx(ctx context.Context, tx orders.InventoryRepo, inventoryID string, qty int, ref *Reference, notes string) (*orders.InventoryRecord, error) {
	if qty <= 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "release quantity must be positive")
	}
	rec, err := lock(ctx, tx, inventoryID)
	if err != nil {
		return nil, err
	}
	rec.ReservedQuantity = max(0, rec.ReservedQuantity-qty)
	if err := m.record(ctx, tx, rec, -qty, orders.MovementReleased, AdjustOptions{Reference: ref, Notes: notes}); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetQuantity books the difference to an absolute target: receipt when it
// grows, adjustment when it shrinks, nothing when unchanged.
func (m *Manager) SetQuantity(ctx context.Context, inventoryID string, target int, opts AdjustOptions) (*orders.InventoryRecord, error) {
	if target < 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "quantity must not be negative")
	}
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, err = lock(ctx, tx, inventoryID)
		if err != nil {
			return err
		}
		delta := target - rec.Quantity
		if delta == 0 {
			return nil
		}
		mt := orders.MovementReceipt
		if delta < 0 {
			mt = orders.MovementAdjustment
		}
		_, err = m.book(ctx, tx, rec, delta, mt, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) DebitForSale(ctx context.Context, inventoryID string, qty int, ref *Reference) (*orders.InventoryRecord, error) {
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, err = m.DebitForSaleTx(ctx, tx, inventoryID, qty, ref)
		return err
	})
	return rec, err
}

// DebitForSaleTx takes sold units off on-hand stock. Reservations are not
// consumed: checkout debits directly rather than committing a reservation.
func (m *Manager) DebitForSaleTx(ctx context.Context, tx orders.InventoryRepo, inventoryID string, qty int, ref *Reference) (*orders.InventoryRecord, error) {
	if qty <= 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "sale quantity must be positive")
	}
	rec, err := lock(ctx, tx, inventoryID)
	if err != nil {
		return nil, err
	}
	if rec.Quantity < qty {
		m.metrics.StockRejected()
		return nil, insufficient(rec, qty, rec.Quantity)
	}
	if _, err := m.book(ctx, tx, rec, -qty, orders.MovementSale, AdjustOptions{Reference: ref}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) CreditForCancellation(ctx context.Context, inventoryID string, qty int, mt orders.MovementType, ref *Reference) (*orders.InventoryRecord, error) {
	var rec *orders.InventoryRecord
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		rec, err = m.CreditForCancellationTx(ctx, tx, inventoryID, qty, mt, ref)
		return err
	})
	return rec, err
}

// CreditForCancellationTx puts previously debited units back on hand.
// mt must be return or adjustment.
func (m *Manager) CreditForCancellationTx(ctx context.Context, tx orders.InventoryRepo, inventoryID string, qty int, mt orders.MovementType, ref *Reference) (*orders.InventoryRecord, error) {
	if qty <= 0 {
		return nil, apperr.Wrap(apperr.KindBadRequest, ErrInvalidQuantity, "credit quantity must be positive")
	}
	if mt != orders.MovementReturn && mt != orders.MovementAdjustment {
		return nil, apperr.BadRequest("movement type %q cannot restore cancelled stock", mt)
	}
	rec, err := lock(ctx, tx, inventoryID)
	if err != nil {
		return nil, err
	}
	if _, err := m.book(ctx, tx, rec, qty, mt, AdjustOptions{Reference: ref, Notes: "order cancelled"}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) History(ctx context.Context, inventoryID string) ([]orders.StockMovement, error) {
	var out []orders.StockMovement
	err := m.store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := lock(ctx, tx, inventoryID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListMovements(ctx, inventoryID)
		return err
	})
	return out, err
}

// Reconcile returns quantity minus the sum of on-hand deltas. Zero means the
// log explains the row; a floored adjustment shows up as positive drift.
func Reconcile(rec *orders.InventoryRecord, movements []orders.StockMovement) int {
	sum := 0
	for _, mv := range movements {
		if mv.MovementType.AffectsOnHand() {
			sum += mv.Quantity
		}
	}
	return rec.Quantity - sum
}

// book applies delta to on-hand stock (floored at zero) and records it.
func (m *Manager) book(ctx context.Context, tx orders.InventoryRepo, rec *orders.InventoryRecord, delta int, mt orders.MovementType, opts AdjustOptions) (*orders.StockMovement, error) {
	next := rec.Quantity + delta
	if next < 0 {
		m.logger.Warn("adjustment floored at zero",
			zap.String("inventory_id", rec.ID),
			zap.Int("quantity", rec.Quantity),
			zap.Int("delta", delta))
		next = 0
	}
	rec.Quantity = next
	if rec.ReservedQuantity > rec.Quantity {
		rec.ReservedQuantity = rec.Quantity
	}
	mv := m.movement(rec, delta, mt, opts)
	if err := m.persist(ctx, tx, rec, mv); err != nil {
		return nil, err
	}
	return mv, nil
}

// record persists a reservation change already applied to rec.
func (m *Manager) record(ctx context.Context, tx orders.InventoryRepo, rec *orders.InventoryRecord, delta int, mt orders.MovementType, opts AdjustOptions) error {
	return m.persist(ctx, tx, rec, m.movement(rec, delta, mt, opts))
}

func (m *Manager) movement(rec *orders.InventoryRecord, delta int, mt orders.MovementType, opts AdjustOptions) *orders.StockMovement {
	mv := &orders.StockMovement{
		ID:           uuid.NewString(),
		InventoryID:  rec.ID,
		Quantity:     delta,
		MovementType: mt,
		Notes:        opts.Notes,
		ActorID:      opts.ActorID,
		CreatedAt:    m.now(),
	}
	if opts.Reference != nil {
		id, typ := opts.Reference.ID, opts.Reference.Type
		mv.ReferenceID, mv.ReferenceType = &id, &typ
	}
	return mv
}

func (m *Manager) persist(ctx context.Context, tx orders.InventoryRepo, rec *orders.InventoryRecord, mv *orders.StockMovement) error {
	rec.RefreshStatus()
	rec.UpdatedAt = mv.CreatedAt
	if err := tx.UpdateInventory(ctx, rec); err != nil {
		return fmt.Errorf("update inventory %s: %w", rec.ID, err)
	}
	if err := tx.InsertMovement(ctx, mv); err != nil {
		return fmt.Errorf("insert movement for %s: %w", rec.ID, err)
	}
	m.metrics.Movement(string(mv.MovementType))
	return nil
}

func lock(ctx context.Context, tx orders.InventoryRepo, inventoryID string) (*orders.InventoryRecord, error) {
	rec, err := tx.InventoryForUpdate(ctx, inventoryID)
	if err != nil {
		return nil, notFound(err, "inventory "+inventoryID)
	}
	return rec, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, orders.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, ErrInventoryNotFound, "no inventory record for %s", what)
	}
	return err
}

func insufficient(rec *orders.InventoryRecord, want, have int) error {
	return apperr.Wrap(apperr.KindBadRequest, ErrInsufficientStock,
		"insufficient stock for %s: requested %d, available %d", rec.Label(), want, have)
}

func productLabel(productID string, variantID *string) string {
	if variantID != nil {
		return "product " + productID + " variant " + *variantID
	}
	return "product " + productID
}
